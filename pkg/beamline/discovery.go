package beamline

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const discoveryPort = 32228

// DiscoveryResponder answers UDP broadcasts from orchestration clients
// looking for the status server's port.
type DiscoveryResponder struct {
	addr     string
	response string
	logger   log.FieldLogger
}

func NewDiscoveryResponder(addr string, statusPort int, logger log.FieldLogger) (*DiscoveryResponder, error) {
	response := fmt.Sprintf(`{"StatusPort": %d}`, statusPort)

	dr := DiscoveryResponder{
		addr:     addr,
		response: response,
		logger:   logger,
	}

	return &dr, nil
}

func (d *DiscoveryResponder) Run(ctx context.Context) error {
	buf := make([]byte, 1024)

	listenAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(d.addr, fmt.Sprintf("%d", discoveryPort)))
	if err != nil {
		return fmt.Errorf("cannot resolve listen address: %v", err)
	}

	rSock, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("cannot bind receive socket: %v", err)
	}
	defer rSock.Close()

	// Send socket bound to an ephemeral port
	localAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(d.addr, "0"))
	if err != nil {
		return err
	}

	tSock, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("cannot bind send socket: %v", err)
	}
	defer tSock.Close()

	d.logger.Debugf("Discovery responder started on %s", listenAddr.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			// Set a read deadline to periodically check for context cancellation
			rSock.SetReadDeadline(time.Now().Add(1 * time.Second))

			n, addr, err := rSock.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				d.logger.Debugf("Error reading from socket: %v", err)
				continue
			}

			data := string(buf[:n])
			d.logger.Debugf("Received %s from %s", data, addr.String())

			if strings.Contains(data, "mctdiscovery1") {
				if _, err := tSock.WriteToUDP([]byte(d.response), addr); err != nil {
					d.logger.Errorf("Error writing to socket: %v", err)
				}
			}
		}
	}
}
