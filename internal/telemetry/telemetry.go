// Package telemetry forwards tick batches to external brokers.
package telemetry

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/models"
)

// DefaultPublishTimeout bounds one batch publication.
const DefaultPublishTimeout = 2 * time.Second

// Sink publishes one batch. Implementations must not retain b.
type Sink interface {
	Name() string
	PublishBatch(ctx context.Context, b events.Batch) error
	Close() error
}

// zoneMessage is the payload of one zone on the wire.
type zoneMessage struct {
	ZoneID   int                 `json:"zone_id"`
	Snapshot models.ZoneSnapshot `json:"snapshot"`
}

// zonePayloads encodes b in ascending zone order.
func zonePayloads(b events.Batch) ([]int, [][]byte, error) {
	ids := make([]int, 0, len(b.Zones))
	for id := range b.Zones {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		p, err := json.Marshal(zoneMessage{ZoneID: id, Snapshot: b.Zones[id]})
		if err != nil {
			return nil, nil, err
		}
		out = append(out, p)
	}
	return ids, out, nil
}

// Forward publishes every snapshot batch from stream to sink until ctx ends
// or the stream closes. Failures are logged when they start and when they stop.
func Forward(ctx context.Context, stream <-chan events.Event, sink Sink, timeout time.Duration, log *logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	log = log.Named("telemetry." + sink.Name())
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if ev.Kind != events.KindSnapshot || ev.Batch == nil {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := sink.PublishBatch(pctx, *ev.Batch)
			cancel()
			switch {
			case err != nil && err.Error() != lastErr:
				lastErr = err.Error()
				log.Warnw("telemetry_publish_failed", "err", err)
			case err == nil && lastErr != "":
				lastErr = ""
				log.Infow("telemetry_publish_recovered")
			}
		}
	}
}
