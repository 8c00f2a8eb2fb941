package models

import (
	"errors"
	"fmt"
	"strings"
)

// Area is one of the four addressable memory areas of the controller.
type Area string

const (
	AreaDataBlock Area = "DB"
	AreaInput     Area = "I"
	AreaOutput    Area = "Q"
	AreaMemory    Area = "M"
)

// DataType is the scalar type stored at a tag address.
type DataType string

const (
	TypeReal32 DataType = "REAL"
	TypeBool   DataType = "BOOL"
)

// Sizes in bytes of the read/write window for each data type.
const (
	RealSize = 4
	BoolSize = 1
)

var (
	errUnknownArea     = errors.New("unknown memory area")
	errUnknownDataType = errors.New("unknown data type")
	errBitOutOfRange   = errors.New("bit index must be within 0..7")
	errNegativeOffset  = errors.New("byte offset must be >= 0")
	errBlockNumber     = errors.New("data block number must be >= 1")
)

// TagAddress identifies one scalar in controller memory. Values are immutable;
// replace the whole address instead of mutating fields.
type TagAddress struct {
	Area   Area     `json:"area" mapstructure:"area"`
	Block  int      `json:"db,omitempty" mapstructure:"db"`
	Offset int      `json:"start" mapstructure:"start"`
	Type   DataType `json:"type" mapstructure:"type"`
	Bit    int      `json:"bit,omitempty" mapstructure:"bit"`
}

// Real returns a REAL tag in a data block.
func Real(block, offset int) TagAddress {
	return TagAddress{Area: AreaDataBlock, Block: block, Offset: offset, Type: TypeReal32}
}

// Bool returns a BOOL tag in a data block.
func Bool(block, offset, bit int) TagAddress {
	return TagAddress{Area: AreaDataBlock, Block: block, Offset: offset, Type: TypeBool, Bit: bit}
}

// Normalize upper-cases area and type and defaults an empty area to DB.
func (t TagAddress) Normalize() TagAddress {
	t.Area = Area(strings.ToUpper(strings.TrimSpace(string(t.Area))))
	if t.Area == "" {
		t.Area = AreaDataBlock
	}
	t.Type = DataType(strings.ToUpper(strings.TrimSpace(string(t.Type))))
	if t.Type != TypeBool {
		t.Bit = 0
	}
	return t
}

// Validate checks the address against the protocol's addressing rules.
func (t TagAddress) Validate() error {
	switch t.Area {
	case AreaDataBlock:
		if t.Block < 1 {
			return errBlockNumber
		}
	case AreaInput, AreaOutput, AreaMemory:
	default:
		return fmt.Errorf("%w: %q", errUnknownArea, t.Area)
	}
	if t.Offset < 0 {
		return errNegativeOffset
	}
	switch t.Type {
	case TypeReal32:
	case TypeBool:
		if t.Bit < 0 || t.Bit > 7 {
			return errBitOutOfRange
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownDataType, t.Type)
	}
	return nil
}

// BlockNumber returns the block number sent on the wire (0 outside data blocks).
func (t TagAddress) BlockNumber() int {
	if t.Area == AreaDataBlock {
		return t.Block
	}
	return 0
}

// Size is the byte window read or written for this tag.
func (t TagAddress) Size() int {
	if t.Type == TypeBool {
		return BoolSize
	}
	return RealSize
}

// String renders the address the way operators read it in the PLC tooling,
// e.g. DB101.DBD0, DB301.DBX0.0, M10.3 or Q4 (REAL).
func (t TagAddress) String() string {
	if t.Type == TypeBool {
		if t.Area == AreaDataBlock {
			return fmt.Sprintf("DB%d.DBX%d.%d", t.Block, t.Offset, t.Bit)
		}
		return fmt.Sprintf("%s%d.%d", t.Area, t.Offset, t.Bit)
	}
	if t.Area == AreaDataBlock {
		return fmt.Sprintf("DB%d.DBD%d", t.Block, t.Offset)
	}
	return fmt.Sprintf("%s%d (REAL)", t.Area, t.Offset)
}
