package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/protocol"
)

const subscriberBuffer = 256

// Config holds connection settings for the NATS transport.
type Config struct {
	URL           string
	Subject       string // e.g. "trivia.main"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default NATS settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "trivia.main",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Channel carries protocol messages over core NATS subjects. Delivery is at-most-once;
// the periodic snapshot covers anything lost during a reconnect.
type Channel struct {
	nc      *nats.Conn
	subject string

	mu     sync.Mutex
	closed bool
	subs   map[*nats.Subscription]chan struct{}
}

// Connect dials NATS and returns a channel bound to cfg.Subject.
func Connect(cfg Config) (*Channel, error) {
	opts := []nats.Option{
		nats.Name("trivia-sync"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Channel{
		nc:      nc,
		subject: cfg.Subject,
		subs:    make(map[*nats.Subscription]chan struct{}),
	}, nil
}

func (c *Channel) Publish(_ context.Context, msg protocol.Message) error {
	if c.isClosed() {
		return domain.ErrChannelClosed
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Channel) Subscribe(ctx context.Context) (<-chan protocol.Message, func(), error) {
	if c.isClosed() {
		return nil, nil, domain.ErrChannelClosed
	}

	raw := make(chan *nats.Msg, subscriberBuffer)
	sub, err := c.nc.ChanSubscribe(c.subject, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	// make sure the server registered the interest before returning
	if err := c.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flush subscription: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.subs[sub] = done
	c.mu.Unlock()

	out := make(chan protocol.Message, subscriberBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case m := <-raw:
				msg, err := protocol.Decode(m.Data)
				if err != nil {
					log.Warn().Err(err).Str("subject", c.subject).Msg("dropping undecodable message")
					continue
				}
				select {
				case out <- msg:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			if ch, ok := c.subs[sub]; ok {
				delete(c.subs, sub)
				close(ch)
			}
			c.mu.Unlock()
			_ = sub.Unsubscribe()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return out, func() {
		stop()
		cancel()
	}, nil
}

// Close drains subscriptions and closes the connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for sub, done := range c.subs {
		_ = sub.Unsubscribe()
		close(done)
		delete(c.subs, sub)
	}
	c.mu.Unlock()
	c.nc.Close()
	return nil
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
