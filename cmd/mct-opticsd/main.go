package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"mctoptics/pkg/beamline"
	"mctoptics/pkg/epics"
	"mctoptics/pkg/facility"
	"mctoptics/pkg/optics"
	"mctoptics/pkg/pvgate"
)

// gatewayConfig resolves the broker settings: the config file wins and
// is persisted; otherwise the last persisted settings are used.
func gatewayConfig(cfg beamline.Config, store *beamline.Store) (beamline.GatewayConfig, error) {
	if cfg.Gateway.Broker != "" {
		if err := store.SetGatewayConfig(cfg.Gateway); err != nil {
			return beamline.GatewayConfig{}, fmt.Errorf("failed to persist gateway config: %v", err)
		}
		return cfg.Gateway, nil
	}
	return store.GetGatewayConfig()
}

// seedSimulator fills the simulated IOC with every PV the devices bind,
// plus plausible values for the PVs the daemon reads at startup.
func seedSimulator(sim *pvgate.Simulator, prefix string, devices ...beamline.Device) {
	pvs := make(map[string]string)
	for _, dev := range devices {
		for _, pv := range dev.PVNames() {
			pvs[pv] = ""
		}
	}

	pvs[prefix+"ServerRunning"] = "Running"
	pvs[prefix+"MCTStatus"] = "Done"
	pvs[prefix+"LensSelect"] = "0"
	pvs[prefix+"CameraSelect"] = "0"
	pvs[prefix+"CameraSelected"] = "Camera 0"
	pvs["S:SRcurrentAI"] = "101.8"
	pvs["S:ActualMode"] = "USER OPERATIONS"

	sim.Load(pvs)
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("MCT Optics Server")

	cfg, err := beamline.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.HTTPPort = c.Int("port")
	}

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := beamline.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	// Resolve the PV connection: a live gateway client, or the
	// in-memory simulator when running without a broker.
	var conn epics.Conn
	var sim *pvgate.Simulator

	if c.Bool("simulate") {
		log.Info("Running in simulate mode, no gateway connection")
		sim = pvgate.NewSimulator()
		conn = sim
	} else {
		gwCfg, err := gatewayConfig(cfg, store)
		if err != nil {
			return fmt.Errorf("failed to resolve gateway config: %v", err)
		}

		client := pvgate.NewClient(pvgate.Config{
			Broker:    gwCfg.Broker,
			Username:  gwCfg.Username,
			Password:  gwCfg.Password,
			TopicRoot: gwCfg.TopicRoot,
		}, log.StandardLogger())

		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect to PV gateway: %v", err)
		}
		defer client.Disconnect()
		conn = client
	}

	opticsDev, err := optics.New(0, cfg.Prefix, cfg.SchemaVersion, conn, log.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to create optics device: %v", err)
	}

	registry := beamline.NewRegistry(log.StandardLogger())
	registry.Add(opticsDev)
	defer registry.Close()

	// The facility source only resolves from inside the facility
	// network; register it when the host qualifies.
	subnets, err := facility.ParseSubnets(cfg.FacilitySubnets)
	if err != nil {
		return err
	}
	onFacility := c.Bool("simulate") || facility.OnFacilityNetwork(subnets, log.StandardLogger())
	registry.AddIf(onFacility, "APS source", func() beamline.Device {
		return facility.NewSource(1, conn, log.StandardLogger())
	})

	if sim != nil {
		seedSimulator(sim, cfg.Prefix, registry.Devices()...)
	}

	for _, dev := range registry.Devices() {
		if err := dev.Connect(); err != nil {
			log.Errorf("Failed to connect %s: %v", dev.DeviceInfo().Name, err)
		}
	}

	serverDesc := beamline.ServerDescription{
		Name:                "MCT Optics Server",
		Manufacturer:        "MCT",
		ManufacturerVersion: "1.0",
		Location:            cfg.Prefix,
	}
	server := beamline.NewServer(serverDesc, registry)
	mux := server.AddRoutes()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		log.Debugf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", srv.Addr, err)
		}
		wg.Done()
	}()

	discoveryLogger := log.WithField("component", "discovery")
	dr, err := beamline.NewDiscoveryResponder("0.0.0.0", cfg.HTTPPort, discoveryLogger)
	if err != nil {
		log.Fatalf("Failed to start discovery responder: %v", err)
	}

	wg.Add(1)
	go func() {
		if err := dr.Run(ctx); err != nil {
			log.Fatalf("Discovery responder failed: %v", err)
		}
		wg.Done()
		log.Debug("Discovery responder stopped")
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "mct-opticsd",
		Usage: "MCT optics device server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the beamline config file",
				Value:   "beamline.yaml",
				EnvVars: []string{"MCT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the settings database",
				Value:   "mctoptics.db",
				EnvVars: []string{"MCT_DB"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the status server",
				EnvVars: []string{"MCT_PORT"},
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Use a simulated IOC instead of the PV gateway",
				Value: false,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
