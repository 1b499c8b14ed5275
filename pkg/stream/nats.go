package stream

import (
	"github.com/nats-io/nats.go"

	"chatstream/pkg/logger"
)

// natsBroker carries stream frames over a NATS connection, so external
// consumers can tap live generation subjects. Stream records and replay
// buffers are node-local; resumes are served by the node that started
// the stream.
type natsBroker struct {
	nc *nats.Conn
}

// NATS wraps an established connection as a Broker.
func NATS(nc *nats.Conn) Broker {
	return &natsBroker{nc: nc}
}

// Connect dials the NATS server and returns a broker over the connection.
func Connect(url string) (Broker, error) {
	nc, err := nats.Connect(url,
		nats.Name("chatstream"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsBroker{nc: nc}, nil
}

func (b *natsBroker) Publish(topic string, data []byte) error {
	return b.nc.Publish(topic, data)
}

func (b *natsBroker) Subscribe(topic string, fn func(data []byte)) (func(), error) {
	sub, err := b.nc.Subscribe(topic, func(m *nats.Msg) {
		fn(m.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("nats_unsubscribe_failed", "topic", topic, "error", err)
		}
	}, nil
}

func (b *natsBroker) Close() error {
	b.nc.Close()
	return nil
}
