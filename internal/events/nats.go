package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type NatsSender struct {
	conn *nats.Conn
}

func ConnectNATS(url, clientName string) (*NatsSender, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	return &NatsSender{conn: nc}, nil
}

func (s *NatsSender) Send(subject string, data []byte) error {
	return s.conn.Publish(subject, data)
}

// Close flushes pending messages before closing the connection.
func (s *NatsSender) Close() {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
}
