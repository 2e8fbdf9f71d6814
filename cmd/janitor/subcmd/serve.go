package subcmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jakegut/quickwit/kernel/engine"
	"github.com/jakegut/quickwit/kernel/events"
	"github.com/jakegut/quickwit/kernel/loader"
	"github.com/jakegut/quickwit/kernel/metrics"
	"github.com/jakegut/quickwit/kernel/runtime"
	"github.com/jakegut/quickwit/kernel/search"
	"github.com/jakegut/quickwit/kernel/storage"
)

func init() {
	RootCmd.AddCommand(NewServeCommand())
}

func NewServeCommand() *cobra.Command {
	serveCmd := &ServeCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the janitor service",
		RunE:  serveCmd.serve,
	}

	cmd.Flags().StringVarP(&serveCmd.ConfigPath, "config", "c", "", "path to janitor configuration file")
	cmd.MarkFlagRequired("config")

	return cmd
}

type ServeCommand struct {
	ConfigPath string
}

func (s *ServeCommand) serve(cmd *cobra.Command, args []string) error {
	cfg, err := loader.LoadConfig(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ms, err := newMetastore(cfg.MetastoreURI)
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	svc, err := engine.NewJanitorService(
		ms,
		search.NewJobPlacer(cfg.Searchers...),
		storage.NewResolver(),
		cfg.DataDir,
		cfg.MaxConcurrentUploads,
		broker,
		cfg.RunInterval,
	)
	if err != nil {
		return fmt.Errorf("failed to build janitor service: %w", err)
	}

	var reporter *metrics.Reporter
	if cfg.Metrics.Enabled {
		reporter = metrics.NewReporter(cfg.Metrics, broker)
		reporter.Start()
		logrus.Infof("reporting metrics to %s", cfg.Metrics.URL)
	}

	universe := runtime.NewUniverse()
	universe.Spawn(svc)
	logrus.Infof("janitor started: %d delete pipeline(s), pass interval %v",
		svc.State().NumRunningPipelines, cfg.RunInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	logrus.Info("shutting down...")
	universe.Shutdown()
	if reporter != nil {
		reporter.Stop()
	}
	return nil
}
