package pvgate

import (
	"context"
	"fmt"
	"sync"
)

// Simulator is an in-memory PV table implementing the same access
// surface as the gateway client. It backs the daemon's simulate mode and
// the package tests, so no broker or IOC is needed.
type Simulator struct {
	mu        sync.Mutex
	pvs       map[string]string
	connected bool
}

func NewSimulator() *Simulator {
	return &Simulator{
		pvs:       make(map[string]string),
		connected: true,
	}
}

// Load seeds the PV table. Unknown PVs fail reads, so tests and simulate
// mode declare the IOC surface up front.
func (s *Simulator) Load(pvs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pv, value := range pvs {
		s.pvs[pv] = value
	}
}

func (s *Simulator) Get(ctx context.Context, pv string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	value, ok := s.pvs[pv]
	if !ok {
		return "", fmt.Errorf("PV %s not found", pv)
	}
	return value, nil
}

func (s *Simulator) Put(ctx context.Context, pv string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	s.pvs[pv] = value
	return nil
}

func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SetConnected toggles the simulated link state.
func (s *Simulator) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}
