package pvgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("not connected to PV gateway")

const defaultTimeout = 5 * time.Second

type connState int

const (
	connStateDisconnected connState = iota
	connStateConnecting
	connStateConnected
)

// Config holds the broker connection settings for the PV gateway.
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	TopicRoot string

	// Timeout bounds each gateway round trip. Zero means the default.
	Timeout time.Duration
}

// createMQTTClient initializes and connects a new MQTT client from the
// gateway configuration.
func createMQTTClient(cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID(cfg.ClientID)
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return client, nil
}

// Client bridges PV access over an MQTT broker. Gets and puts are
// correlated request/response pairs on the gateway topics; monitor
// updates arrive on a per-PV topic.
type Client struct {
	cfg    Config
	logger log.FieldLogger

	client mqtt.Client
	state  connState

	mu      sync.Mutex
	pending map[string]chan response
}

func NewClient(cfg Config, logger log.FieldLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "mct-optics"
	}

	return &Client{
		cfg:     cfg,
		logger:  logger.WithField("component", "pvgate"),
		state:   connStateDisconnected,
		pending: make(map[string]chan response),
	}
}

// Connect establishes the broker connection and subscribes to the
// gateway responses topic.
func (c *Client) Connect() error {
	if c.state != connStateDisconnected {
		return fmt.Errorf("client is already connected")
	}
	c.state = connStateConnecting

	client, err := createMQTTClient(c.cfg)
	if err != nil {
		c.state = connStateDisconnected
		return err
	}
	c.client = client

	topic := c.cfg.TopicRoot + "/responses"
	if token := c.client.Subscribe(topic, 0, c.responseHandler); token.Wait() && token.Error() != nil {
		c.client.Disconnect(100)
		c.state = connStateDisconnected
		return fmt.Errorf("failed to subscribe to responses topic: %v", token.Error())
	}

	c.state = connStateConnected
	c.logger.Infof("Connected to PV gateway at %s", c.cfg.Broker)
	return nil
}

func (c *Client) Disconnect() error {
	if c.state != connStateConnected {
		return ErrNotConnected
	}

	c.client.Unsubscribe(c.cfg.TopicRoot + "/responses")
	c.client.Disconnect(100)
	c.state = connStateDisconnected
	c.logger.Info("Disconnected from PV gateway")
	return nil
}

func (c *Client) Connected() bool {
	return c.state == connStateConnected && c.client.IsConnected()
}

func (c *Client) Connecting() bool {
	return c.state == connStateConnecting
}

// Get reads a PV through the gateway.
func (c *Client) Get(ctx context.Context, pv string) (string, error) {
	resp, err := c.roundTrip(ctx, request{Op: opGet, PV: pv})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

// Put writes a PV through the gateway.
func (c *Client) Put(ctx context.Context, pv string, value string) error {
	_, err := c.roundTrip(ctx, request{Op: opPut, PV: pv, Value: value})
	return err
}

// Monitor subscribes to gateway updates for a PV. The callback runs on
// the MQTT client's handler goroutine.
func (c *Client) Monitor(pv string, fn func(Update)) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	topic := c.cfg.TopicRoot + "/updates/" + pv
	handler := func(client mqtt.Client, msg mqtt.Message) {
		up, err := parseUpdate(msg.Payload())
		if err != nil {
			c.logger.Errorf("Failed to parse update: %v", err)
			return
		}
		fn(up)
	}

	if token := c.client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to updates for %s: %v", pv, token.Error())
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	if !c.Connected() {
		return response{}, ErrNotConnected
	}

	req.ID = uuid.NewString()
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("failed to marshal request: %v", err)
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	topic := c.cfg.TopicRoot + "/requests"
	c.logger.Debugf("Sending %s request for %s", req.Op, req.PV)
	if token := c.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return response{}, fmt.Errorf("failed to publish request: %v", token.Error())
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return response{}, fmt.Errorf("gateway error for %s: %s", req.PV, resp.Error)
		}
		return resp, nil

	case <-time.After(c.cfg.Timeout):
		return response{}, fmt.Errorf("timeout waiting for gateway response for %s", req.PV)

	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (c *Client) responseHandler(client mqtt.Client, msg mqtt.Message) {
	resp, err := parseResponse(msg.Payload())
	if err != nil {
		c.logger.Errorf("Failed to parse response: %v", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()

	if !ok {
		c.logger.Debugf("Dropping response with unknown correlation ID %s", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
		c.logger.Warnf("Response channel full for %s", resp.PV)
	}
}
