package messaging

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/atvirokodosprendimai/slavealloc/internal/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const (
	// SubjectAllocation is the subject committed allocations are announced on.
	SubjectAllocation = "slavealloc.allocation"
)

// AllocationEvent is published after a slave's current master is written.
type AllocationEvent struct {
	ID        string    `json:"id"`
	Slave     string    `json:"slave"`
	Master    string    `json:"master"`
	FQDN      string    `json:"fqdn"`
	Port      int       `json:"port"`
	Locked    bool      `json:"locked"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAllocationEvent stamps an event with a fresh id and the current time.
func NewAllocationEvent(slave, master, fqdn string, port int, locked bool) AllocationEvent {
	return AllocationEvent{
		ID:        uuid.NewString(),
		Slave:     slave,
		Master:    master,
		FQDN:      fqdn,
		Port:      port,
		Locked:    locked,
		Timestamp: time.Now().UTC(),
	}
}

// Connect establishes a connection to a NATS server.
func Connect(natsURL string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL, nats.Name("slavealloc"))
	if err != nil {
		return nil, err
	}
	log.Logger.Info().Str("url", natsURL).Msg("connected to NATS server")
	return nc, nil
}

// StartEmbedded runs an in-process NATS server bound to addr (host:port).
// A port of -1 picks a random free port.
func StartEmbedded(addr string) (*server.Server, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid nats address %q: %w", addr, err)
	}
	portInt, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid nats port %q: %w", port, err)
	}

	ns, err := server.NewServer(&server.Options{Host: host, Port: portInt, NoSigs: true})
	if err != nil {
		return nil, fmt.Errorf("could not start embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server did not become ready")
	}
	log.Logger.Info().Str("addr", addr).Msg("embedded NATS server started")
	return ns, nil
}

// Publisher announces allocation events on a NATS connection.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher wraps an established connection.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// PublishAllocation encodes ev and publishes it on SubjectAllocation.
func (p *Publisher) PublishAllocation(ev AllocationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode allocation event: %w", err)
	}
	return p.nc.Publish(SubjectAllocation, data)
}

// SubscribeAllocations calls fn for every decoded allocation event.
// Undecodable messages are logged and dropped.
func SubscribeAllocations(nc *nats.Conn, fn func(AllocationEvent)) (*nats.Subscription, error) {
	return nc.Subscribe(SubjectAllocation, func(m *nats.Msg) {
		var ev AllocationEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			log.Logger.Error().Err(err).Msg("unmarshalling allocation event")
			return
		}
		fn(ev)
	})
}
