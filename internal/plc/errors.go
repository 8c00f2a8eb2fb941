package plc

import (
	"errors"
	"fmt"

	"tunnel_hmi/internal/models"
)

var errUnsupportedType = errors.New("unsupported data type")

// ResolutionError reports a signal key absent from a zone's tag map.
type ResolutionError struct {
	ZoneID int
	Key    models.SignalKey
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("tag %s not defined for zone %d", e.Key, e.ZoneID)
}

// TransactionError is a transport read or write failure on a single tag.
type TransactionError struct {
	Op  string
	Tag models.TagAddress
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s %s/%s failed: %v", e.Op, e.Tag, e.Tag.Type, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// ConnectError is a failed connect, including the optional default-port retry.
type ConnectError struct {
	Address     string
	Port        int
	Err         error
	FallbackErr error
}

func (e *ConnectError) Error() string {
	if e.FallbackErr != nil {
		return fmt.Sprintf("connect %s failed (port %d and fallback %d): %v / %v",
			e.Address, e.Port, DefaultPort, e.Err, e.FallbackErr)
	}
	return fmt.Sprintf("connect %s failed (port %d): %v", e.Address, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
