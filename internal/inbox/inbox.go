// Package inbox abstracts where raw order confirmation messages come from.
// The daemon polls a Source; the watermark of the last fully processed
// message lives with the caller, not here.
package inbox

import (
	"context"
	"time"
)

// RawMessage is one inbound message, not yet interpreted.
type RawMessage struct {
	UID      string // opaque, strictly increasing per source
	Subject  string
	Body     string
	Received time.Time
}

// Source yields new messages. Each call returns a finite batch; calls are
// not restartable, so the caller filters against its own watermark.
type Source interface {
	// FetchNew returns all currently available messages with UID greater
	// than afterUID, in ascending UID order.
	FetchNew(ctx context.Context, afterUID string) ([]RawMessage, error)
}
