// Package messaging provides the NATS client wrapper carrying hook
// callbacks between the IRC host and the module bundle. The host publishes
// request messages on the hook.* subjects and waits for a reply on the
// message's reply inbox; oper notices fan out on the snotice.* subjects.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects used between the host and the bundle.
const (
	// SubjectMessageCheck carries outbound-message hook requests
	// (request/reply). Workers join one queue group so each message is
	// checked exactly once.
	SubjectMessageCheck = "hook.message.check"

	// SubjectConnectCheck carries registration hook requests (request/reply).
	SubjectConnectCheck = "hook.connect.check"

	// SubjectCommand is the prefix for command dispatch hooks
	// (cmd.<COMMAND>, request/reply).
	SubjectCommand = "cmd"

	// SubjectSnotice is the prefix for oper notices (snotice.<mask>,
	// fire-and-forget).
	SubjectSnotice = "snotice"
)

// CheckQueueGroup is the queue group joined by message/connect check workers.
const CheckQueueGroup = "mods-check"

// Client wraps the NATS connection with helper methods for the hook traffic.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "inspircd-mods",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// QueueSubscribe registers a handler on subject within the check queue
// group and stores the subscription for later cleanup. Handlers reply via
// msg.Respond.
func (c *Client) QueueSubscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, CheckQueueGroup, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeCommand registers a handler for the cmd.<command> dispatch hook.
func (c *Client) SubscribeCommand(command string, handler func(msg *nats.Msg)) error {
	return c.QueueSubscribe(SubjectCommand+"."+command, handler)
}

// PublishSnotice sends an oper notice line on the given snomask.
func (c *Client) PublishSnotice(mask byte, line string) error {
	return c.Publish(fmt.Sprintf("%s.%c", SubjectSnotice, mask), []byte(line))
}

// Unsubscribe removes a previously registered subscription.
func (c *Client) Unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if ok {
		delete(c.subs, subject)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

// Close drains every subscription and closes the connection. Drain lets
// in-flight hook replies finish before the connection goes away.
func (c *Client) Close() {
	c.mu.Lock()
	for subject, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] drain: %v", err)
	}
}
