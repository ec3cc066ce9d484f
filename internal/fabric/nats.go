package fabric

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Mirror republishes every fabric event to a NATS subject so external
// consumers (dashboards, recorders) can observe the live feed without holding
// a connection to the service itself.
type Mirror struct {
	nc     *nats.Conn
	prefix string
}

// NewMirror connects to the NATS server. Events for topic T are published on
// "<prefix>.<T>".
func NewMirror(url, prefix string, logger *logrus.Entry) (*Mirror, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	if logger != nil {
		logger.WithField("url", url).Info("connected to NATS event mirror")
	}
	return &Mirror{nc: nc, prefix: prefix}, nil
}

// Publish serializes the event to JSON and publishes it. NATS buffers writes;
// this does not wait for delivery.
func (m *Mirror) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return m.nc.Publish(m.prefix+"."+ev.Topic, data)
}

// Close drains and closes the NATS connection.
func (m *Mirror) Close() {
	if m.nc != nil {
		m.nc.Drain()
	}
}
