package mqttclient

import (
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/rs/zerolog"
)

// Broker is an in-process MQTT broker for running without external
// infrastructure. It accepts every client.
type Broker struct {
	server *mochi.Server
	addr   string
	log    zerolog.Logger
}

// StartBroker listens for MQTT over TCP on addr.
func StartBroker(addr string, log zerolog.Logger) (*Broker, error) {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewJSONHandler(log, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}
	if err := server.Serve(); err != nil {
		return nil, err
	}
	log.Info().Str("addr", addr).Msg("embedded mqtt broker started")
	return &Broker{server: server, addr: addr, log: log}, nil
}

// URL returns the broker address in the form paho expects.
func (b *Broker) URL() string {
	return BrokerURL(b.addr)
}

// Server exposes the underlying broker for inline subscriptions.
func (b *Broker) Server() *mochi.Server {
	return b.server
}

func (b *Broker) Close() error {
	b.log.Info().Msg("stopping embedded mqtt broker")
	return b.server.Close()
}

// BrokerURL turns a listen address into a tcp:// URL, mapping an empty host
// to localhost.
func BrokerURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "tcp://" + addr
}
