package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/venuekit/usher/pkg/api"
	"github.com/venuekit/usher/pkg/checkin"
	"github.com/venuekit/usher/pkg/config"
	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/netmon"
	"github.com/venuekit/usher/pkg/queue"
	"github.com/venuekit/usher/pkg/resilient"
	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/syncer"
	"github.com/venuekit/usher/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "usher",
	Short: "Usher - resilient check-in sync engine for front-desk attendance",
	Long: `Usher records event attendance against a remote booking store and keeps
working when the network does not: check-ins that cannot reach the store are
persisted locally and replayed automatically once connectivity returns.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Usher version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(bookingCmd)
}

// engine bundles the explicitly constructed sync components. There are no
// package-level singletons; everything is wired here and passed down.
type engine struct {
	kv      *queue.BoltKV
	queue   *queue.Queue
	monitor *netmon.Monitor
	wrapper *resilient.Wrapper
	syncer  *syncer.Syncer
	service *checkin.Service
}

func buildEngine() (*engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	kv, err := queue.NewBoltKV(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	q := queue.New(kv, cfg.MaxRetries)

	prober := netmon.NewHTTPProber(cfg.HealthURL).WithTimeout(cfg.ProbeTimeout.Std())
	monitor := netmon.NewMonitor(prober, netmon.Config{
		Interval:      cfg.MonitorInterval.Std(),
		RetryInterval: cfg.RetryInterval.Std(),
		ProbeTimeout:  cfg.ProbeTimeout.Std(),
	})

	wrapper := resilient.NewWrapper(monitor, 0)
	sy := syncer.New(q, monitor)
	st := store.NewHTTPStore(cfg.StoreURL)
	service := checkin.NewService(st, wrapper, sy)

	sy.RegisterHandler(types.OperationCheckIn, service.HandleReplay)
	sy.RegisterHandler(types.OperationSearch, syncer.NoopHandler)

	// Both retry paths drain on the monitor's cadence and on reconnect
	monitor.OnDrain(func() { wrapper.Drain(context.Background()) })
	monitor.OnDrain(sy.Kick)

	return &engine{
		kv:      kv,
		queue:   q,
		monitor: monitor,
		wrapper: wrapper,
		syncer:  sy,
		service: service,
	}, nil
}

func (e *engine) close() {
	e.monitor.Stop()
	if err := e.kv.Close(); err != nil {
		log.Errorf("failed to close queue database", err)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference record-store server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		dbPath, _ := cmd.Flags().GetString("db")
		if listen == "" {
			listen = cfg.Listen
		}
		if dbPath == "" {
			dbPath = cfg.DBPath
		}

		repo, err := api.NewBookingRepo(dbPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		server := api.NewServer(repo)

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start(listen) }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			fmt.Printf("\nReceived %v, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the sync engine as a long-lived agent",
	Long: `Run the network monitor and sync orchestrator until interrupted.
Queued check-ins left over from previous sessions are replayed as soon as
the store becomes reachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		unsubscribe := eng.syncer.Subscribe(func(stats types.SyncStats) {
			log.Logger.Info().
				Int("pending", stats.Pending).
				Int("synced", stats.TotalSynced).
				Int("conflicts", stats.TotalConflicts).
				Msg("sync pass finished")
		})
		defer unsubscribe()

		eng.monitor.Start()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		fmt.Printf("\nReceived %v, shutting down...\n", sig)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default from config)")
	serveCmd.Flags().String("db", "", "path to the booking database (default from config)")
}
