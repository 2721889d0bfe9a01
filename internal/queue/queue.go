// Package queue implements the continuously polling queue consumer.
//
// The consumer long-polls a message transport, decodes each message into a
// reading, applies it to the store, and acknowledges only on success. Empty
// polls trigger exponential backoff; transport failures trigger a fixed pause
// so the loop never terminates on a transient fault. Delivery is
// at-least-once: an unacknowledged message is redelivered, and stores accept
// the resulting duplicates.
package queue

import (
	"context"
	"time"
)

// Message is one received queue entry. ID is the transport's delivery handle,
// valid for a single Ack.
type Message struct {
	ID   string
	Body []byte
}

// Queue is the receive side of the message transport.
//
// Receive blocks server-side up to wait for at least one message and returns
// up to max messages; an empty slice with a nil error means the wait expired
// with nothing to deliver. Ack removes one delivered message; a message never
// acknowledged is redelivered.
type Queue interface {
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Ack(ctx context.Context, id string) error
}
