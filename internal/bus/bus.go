// SPDX-License-Identifier: MIT

// Package bus is the asynchronous message channel between the capture agent
// and the controller. Delivery is at-least-attempted: publishers must not
// assume a subscriber is listening, and subscribers must not assume the
// publisher is still alive.
package bus

import "context"

// Message is an opaque event payload; the capture package supplies the
// concrete tagged variants.
type Message interface{}

// Subscriber is one attached consumer of a topic.
type Subscriber interface {
	// C returns a read-only message channel. It is closed on Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the message transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
