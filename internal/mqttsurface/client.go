package mqttsurface

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Options configures the broker connection.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Client wraps a paho connection. Every broker round trip is bounded by timeout.
type Client struct {
	client  paho.Client
	timeout time.Duration
	log     *zap.Logger
}

// Dial connects to the broker.
func Dial(opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("panner-%d", time.Now().UnixNano())
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOrderMatters(false)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := paho.NewClient(clientOpts)
	if token := client.Connect(); token.WaitTimeout(opts.Timeout) && token.Error() != nil {
		return nil, token.Error()
	}
	if !client.IsConnected() {
		return nil, fmt.Errorf("mqtt connect to %s timed out", opts.BrokerURL)
	}

	return &Client{client: client, timeout: opts.Timeout, log: opts.Logger}, nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return c.wait(c.client.Publish(topic, qos, retained, payload), "publish "+topic)
}

func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return c.wait(c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}), "subscribe "+topic)
}

func (c *Client) wait(token paho.Token, op string) error {
	if !token.WaitTimeout(c.timeout) {
		c.log.Warn("mqtt operation timed out", zap.String("op", op), zap.Duration("timeout", c.timeout))
		return fmt.Errorf("%w: %s after %s", ErrTimeout, op, c.timeout)
	}
	return token.Error()
}

func (c *Client) Close() {
	c.client.Disconnect(250)
	c.log.Debug("mqtt disconnected")
}
