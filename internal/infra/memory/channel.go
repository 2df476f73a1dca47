package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

const subscriberBuffer = 256

// Channel is an in-process broadcast channel. Each subscriber receives its own decoded copy of
// every message, so nothing crosses the boundary by reference.
type Channel struct {
	mu          sync.Mutex
	closed      bool
	subscribers map[chan protocol.Message]struct{}
}

func NewChannel() *Channel {
	return &Channel{subscribers: make(map[chan protocol.Message]struct{})}
}

func (c *Channel) Publish(_ context.Context, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrChannelClosed
	}
	for ch := range c.subscribers {
		copied, err := protocol.Decode(data)
		if err != nil {
			return err
		}
		select {
		case ch <- copied:
		default:
			// Slow subscriber: drop its oldest message; the next snapshot repairs the gap.
			select {
			case dropped := <-ch:
				log.Warn().Str("type", string(dropped.Type)).Msg("subscriber lagging, dropped message")
			default:
			}
			ch <- copied
		}
	}
	return nil
}

func (c *Channel) Subscribe(ctx context.Context) (<-chan protocol.Message, func(), error) {
	ch := make(chan protocol.Message, subscriberBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, domain.ErrChannelClosed
	}
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
			c.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

// Close ends every subscription.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	return nil
}
