package beamline

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPPort  = 8090
	defaultTopicRoot = "mct/pvgate"
)

// GatewayConfig holds the MQTT broker settings for the PV gateway.
type GatewayConfig struct {
	Broker    string `yaml:"broker"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TopicRoot string `yaml:"topicRoot"`
}

// Config is the beamline runtime configuration, loaded from a YAML file
// and validated before anything is constructed from it.
type Config struct {
	// Prefix is the IOC prefix of the optics subsystem, e.g.
	// "2bm:MCTOptics:".
	Prefix string `yaml:"prefix"`

	// SchemaVersion pins the optics device tree variant. Empty selects
	// the default.
	SchemaVersion string `yaml:"schemaVersion"`

	Gateway GatewayConfig `yaml:"gateway"`

	// FacilitySubnets are the CIDRs considered "on the facility
	// network"; the facility source device is registered only when a
	// local address falls inside one of them.
	FacilitySubnets []string `yaml:"facilitySubnets"`

	HTTPPort int `yaml:"httpPort"`
}

func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate applies defaults and rejects settings that would only fail
// later at device construction.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("prefix must be set")
	}

	if c.HTTPPort == 0 {
		c.HTTPPort = defaultHTTPPort
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Gateway.TopicRoot == "" {
		c.Gateway.TopicRoot = defaultTopicRoot
	}

	for _, cidr := range c.FacilitySubnets {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid facility subnet %q: %v", cidr, err)
		}
	}

	return nil
}
