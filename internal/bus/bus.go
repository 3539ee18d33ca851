// Package bus is the NATS transport layer: one connection carrying all
// door traffic, with typed subject builders under a configurable prefix.
package bus

import "context"

// Msg is one delivered bus message. Reply carries the publisher's inbox
// subject when the message was sent as a request, otherwise it is empty.
type Msg struct {
	Subject string
	Reply   string
	Data    []byte
}

// Publisher is the interface for emitting JSON-encoded messages.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg any) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan Msg, func(), error)
	Close() error
}
