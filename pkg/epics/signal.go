package epics

import (
	"context"
	"errors"
)

var (
	ErrNotConnected = errors.New("not connected to PV gateway")
	ErrReadOnly     = errors.New("signal is read-only")
)

// Conn is the transport used to reach process variables. The production
// implementation bridges to EPICS through an MQTT gateway; tests use an
// in-memory simulator.
type Conn interface {
	// Get reads the current value of a PV as a string.
	Get(ctx context.Context, pv string) (string, error)

	// Put writes a value to a PV.
	Put(ctx context.Context, pv string, value string) error

	Connected() bool
}

// Signal is a single PV bound to a connection. The PV name is fixed at
// construction; all transport concerns live in the Conn.
type Signal struct {
	name string
	conn Conn
}

func NewSignal(conn Conn, name string) *Signal {
	return &Signal{name: name, conn: conn}
}

// Name returns the full PV name the signal is bound to.
func (s *Signal) Name() string {
	return s.name
}

func (s *Signal) Get(ctx context.Context) (string, error) {
	return s.conn.Get(ctx, s.name)
}

func (s *Signal) Put(ctx context.Context, value string) error {
	return s.conn.Put(ctx, s.name, value)
}

// SignalRO is a read-only PV binding. Put always fails, mirroring a PV
// the IOC exports without write access.
type SignalRO struct {
	Signal
}

func NewSignalRO(conn Conn, name string) *SignalRO {
	return &SignalRO{Signal{name: name, conn: conn}}
}

func (s *SignalRO) Put(ctx context.Context, value string) error {
	return ErrReadOnly
}
