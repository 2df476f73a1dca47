package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-sync/internal/domain"
)

// Channel is a broadcast primitive shared by one control and any number of displays.
// Delivery is at-most-once; messages from one sender arrive in send order, with no ordering
// across senders. Subscribers may also receive their own messages.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe returns a stream of messages and a cancel func that must be called to release it.
	Subscribe(ctx context.Context) (<-chan Message, func(), error)
	Close() error
}

// Encode serializes msg for transport.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return data, nil
}

// Decode parses a message and rejects types outside the vocabulary.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if !msg.Type.Known() {
		return Message{}, fmt.Errorf("%w: %q", domain.ErrUnknownMessage, msg.Type)
	}
	return msg, nil
}

// Copy round-trips msg through the codec, yielding a value that shares nothing with the original.
func Copy(msg Message) (Message, error) {
	data, err := Encode(msg)
	if err != nil {
		return Message{}, err
	}
	return Decode(data)
}
