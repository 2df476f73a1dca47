package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

const subscriberBuffer = 256

// Channel carries protocol messages over Redis PUBLISH/SUBSCRIBE, letting control and
// displays run in separate processes or hosts.
type Channel struct {
	client *redis.Client
	topic  string

	mu     sync.Mutex
	closed bool
	subs   map[*redis.PubSub]func() // stops the forwarding goroutine
}

func NewChannel(client *redis.Client, name string) *Channel {
	return &Channel{
		client: client,
		topic:  "trivia:" + name + ":events",
		subs:   make(map[*redis.PubSub]func()),
	}
}

func (c *Channel) Publish(ctx context.Context, msg protocol.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrChannelClosed
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, c.topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Channel) Subscribe(ctx context.Context) (<-chan protocol.Message, func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, domain.ErrChannelClosed
	}
	c.mu.Unlock()

	ps := c.client.Subscribe(ctx, c.topic)
	// wait for the subscription to be confirmed so no message published after Subscribe returns is lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	done := make(chan struct{})
	var doneOnce sync.Once
	stopForward := func() { doneOnce.Do(func() { close(done) }) }

	c.mu.Lock()
	c.subs[ps] = stopForward
	c.mu.Unlock()

	out := make(chan protocol.Message, subscriberBuffer)
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			var raw *redis.Message
			select {
			case m, ok := <-in:
				if !ok {
					return
				}
				raw = m
			case <-done:
				return
			}
			msg, err := protocol.Decode([]byte(raw.Payload))
			if err != nil {
				log.Warn().Err(err).Str("topic", c.topic).Msg("dropping undecodable message")
				continue
			}
			select {
			case out <- msg:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stopForward()
			c.mu.Lock()
			delete(c.subs, ps)
			c.mu.Unlock()
			_ = ps.Close()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return out, func() {
		stop()
		cancel()
	}, nil
}

// Close ends every subscription opened through this channel. The client stays open.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for ps, stopForward := range c.subs {
		stopForward()
		_ = ps.Close()
		delete(c.subs, ps)
	}
	return nil
}
