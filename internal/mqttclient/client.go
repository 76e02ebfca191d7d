package mqttclient

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/transcript"
)

const publishTimeout = 5 * time.Second

// Client publishes transcript change notifications to an MQTT broker.
type Client struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	published atomic.Int64
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

// ChangeMessage is the JSON payload published for each change.
type ChangeMessage struct {
	Type      string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Words     []transcript.Word `json:"words"`
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("prefix", c.prefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// HandleChange publishes c under <prefix>/<kind>. It is registered as a
// store listener and does not wait for the broker acknowledgement.
func (c *Client) HandleChange(ch transcript.Change) {
	payload, err := json.Marshal(ChangeMessage{
		Type:      ch.Kind,
		Timestamp: time.Now().UTC(),
		Words:     ch.Words,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("marshal change")
		return
	}

	topic := topicFor(c.prefix, ch.Kind)
	token := c.conn.Publish(topic, 1, false, payload)
	c.published.Add(1)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			c.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

// Published returns the number of change messages handed to the broker client.
func (c *Client) Published() int64 {
	return c.published.Load()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

func topicFor(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + "/" + kind
}
