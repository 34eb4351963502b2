package facility

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// ParseSubnets parses the configured facility CIDRs. Called at config
// validation time so a typo fails startup instead of silently disabling
// the facility device.
func ParseSubnets(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid facility subnet %q: %v", cidr, err)
		}
		nets = append(nets, ipnet)
	}
	return nets, nil
}

// OnFacilityNetwork reports whether any local interface address falls
// inside one of the facility subnets. Enumeration failure degrades to
// false: the facility device is simply not registered.
func OnFacilityNetwork(subnets []*net.IPNet, logger log.FieldLogger) bool {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		logger.Warnf("Failed to enumerate interface addresses: %v", err)
		return false
	}
	return anyAddrInSubnets(addrs, subnets)
}

func anyAddrInSubnets(addrs []net.Addr, subnets []*net.IPNet) bool {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		default:
			continue
		}

		for _, subnet := range subnets {
			if subnet.Contains(ip) {
				return true
			}
		}
	}
	return false
}
