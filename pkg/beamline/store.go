package beamline

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket           = "mctoptics"
	gatewayConfigKey = "gateway_config"

	defaultBroker = "tcp://localhost:1883"
)

// Store persists the gateway connection settings between runs, so a
// broker configured once survives restarts without a config file.
type Store struct {
	db *bolt.DB
}

// NewStore creates a store and seeds defaults if nothing is persisted.
func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) setDefaults() error {
	if _, err := s.GetGatewayConfig(); err != nil {
		log.Infof("Setting default gateway config")
		return s.SetGatewayConfig(GatewayConfig{
			Broker:    defaultBroker,
			TopicRoot: defaultTopicRoot,
		})
	}
	return nil
}

// SetGatewayConfig saves the gateway configuration as a json string in
// the database.
func (s *Store) SetGatewayConfig(cfg GatewayConfig) error {
	if cfg.Broker == "" {
		return fmt.Errorf("broker cannot be empty")
	}
	if cfg.TopicRoot == "" {
		return fmt.Errorf("topic root cannot be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(cfg)
		return b.Put([]byte(gatewayConfigKey), value)
	})
}

// GetGatewayConfig retrieves the gateway configuration from the
// database.
func (s *Store) GetGatewayConfig() (GatewayConfig, error) {
	var cfg GatewayConfig

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(gatewayConfigKey))
		if value == nil {
			return fmt.Errorf("key config not found")
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
