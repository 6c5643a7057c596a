package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainapi"
	"github.com/audiocloud/domain-server/domainconfig"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/fixedinstances"
	"github.com/audiocloud/domain-server/instrumentation"
	"github.com/audiocloud/domain-server/reconcile"
	"github.com/audiocloud/domain-server/sockets"
	"github.com/audiocloud/domain-server/store"
	"github.com/audiocloud/domain-server/tasks"
	"github.com/audiocloud/domain-server/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the domain server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	var flags *pflag.FlagSet = cmd.Flags()
	flags.String("config", "file://domain.yaml", "domain config source URI (file:// or cloud://)")
	flags.String("listen", ":8080", "ops HTTP listen address (/healthz, /metrics)")
	flags.String("domain-id", "", "override the configured domain_id")
	flags.StringSlice("instance", nil, "repeatable manufacturer/model/serial=base_url driver URL override")
	flags.Duration("reconcile-interval", 10*time.Second, "how often to reload the domain config")
	flags.String("db", "domain.db", "sqlite database path, or :memory: for ephemeral")
	flags.String("sentry-dsn", "", "Sentry DSN for error reporting (disabled if empty)")

	viper.BindPFlags(flags)
	return cmd
}

type instanceOverride struct {
	id      domainapi.InstanceId
	baseURL string
}

func parseInstanceOverrides(raw []string) ([]instanceOverride, error) {
	overrides := make([]instanceOverride, 0, len(raw))
	for _, entry := range raw {
		idPart, baseURL, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --instance override %q, want manufacturer/model/serial=base_url", entry)
		}
		fields := strings.Split(idPart, "/")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid instance id %q in --instance override, want manufacturer/model/serial", idPart)
		}
		overrides = append(overrides, instanceOverride{
			id:      domainapi.NewInstanceId(fields[0], fields[1], fields[2]),
			baseURL: baseURL,
		})
	}
	return overrides, nil
}

// applyInstanceOverrides rewrites the driver base_url of any matching
// configured instance, a lighter-weight supplement to the reconciler's
// own config diffing for ops-time URL overrides (SPEC_FULL.md §1.2).
func applyInstanceOverrides(cfg domainconfig.DomainConfig, overrides []instanceOverride) domainconfig.DomainConfig {
	if len(overrides) == 0 {
		return cfg
	}
	byId := make(map[domainapi.InstanceId]string, len(overrides))
	for _, o := range overrides {
		byId[o.id] = o.baseURL
	}
	for i, ic := range cfg.Instances {
		if baseURL, ok := byId[ic.Id]; ok {
			driverConfig := make(map[string]string, len(ic.DriverConfig)+1)
			for k, v := range ic.DriverConfig {
				driverConfig[k] = v
			}
			driverConfig["base_url"] = baseURL
			cfg.Instances[i].DriverConfig = driverConfig
		}
	}
	return cfg
}

func runServe(cmd *cobra.Command) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	sourceURI := viper.GetString("config")
	listen := viper.GetString("listen")
	domainIdOverride := viper.GetString("domain-id")
	reconcileInterval := viper.GetDuration("reconcile-interval")
	dbPath := viper.GetString("db")
	sentryDSN := viper.GetString("sentry-dsn")

	overrides, err := parseInstanceOverrides(viper.GetStringSlice("instance"))
	if err != nil {
		return err
	}

	reporter, err := telemetry.New(sentryDSN, "production", "domaind-dev")
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer reporter.Flush(2 * time.Second)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	bus := eventbus.New()

	loader := func(uri string) (domainconfig.DomainConfig, error) {
		cfg, err := domainconfig.Load(uri)
		if err != nil {
			return domainconfig.DomainConfig{}, err
		}
		if domainIdOverride != "" {
			cfg.DomainId = domainIdOverride
		}
		return applyInstanceOverrides(cfg, overrides), nil
	}

	// Loaded once up front, ahead of the reconciler, purely to seed
	// taskSupervisor's packet-flush defaults; the reconciler performs
	// its own independent initial load immediately below.
	initialCfg, err := loader(sourceURI)
	if err != nil {
		return fmt.Errorf("loading initial config: %w", err)
	}

	instances := fixedinstances.NewSupervisor(bus, sugar.Named("fixedinstances"))
	defer instances.Stop()

	taskSupervisor := tasks.NewSupervisor(tasks.SupervisorDeps{
		Bus:             bus,
		Log:             sugar.Named("tasks"),
		Instances:       instances,
		Connected:       instances.Connected,
		MaxPacketAgeMs:  initialCfg.TaskDefaults.MaxPacketAgeMs,
		MaxPacketFrames: initialCfg.TaskDefaults.MaxPacketAudioFrames,
	})
	defer taskSupervisor.Stop()

	socketsSupervisor := sockets.NewSupervisor(bus, sugar.Named("sockets"))
	defer socketsSupervisor.Stop()

	// Subscribed before the reconciler is constructed so it catches the
	// reconciler's initial, synchronous config publish (spec.md §6
	// event_sink).
	sinkForwarder := eventbus.NewForwarder(bus, sugar.Named("eventsink"))
	defer sinkForwarder.Stop()

	reconciler, err := reconcile.New(reconcile.Deps{
		SourceURI: sourceURI,
		Interval:  reconcileInterval,
		Loader:    loader,
		Targets:   []reconcile.Target{instances},
		Bus:       bus,
		Models:    db,
		Log:       sugar.Named("reconcile"),
	})
	if err != nil {
		reporter.CaptureError(err, map[string]string{"phase": "startup"})
		return fmt.Errorf("starting reconciler: %w", err)
	}
	defer reconciler.Stop()

	metrics := instrumentation.NewRegistry()
	server := newOpsServer(listen, metrics, instances, taskSupervisor)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Errorw("ops HTTP server exited", "error", err)
			reporter.CaptureError(err, map[string]string{"phase": "ops_server"})
		}
	}()
	defer server.Close()

	sugar.Infow("domain server started", "listen", listen, "config", sourceURI)
	<-interrupt()
	sugar.Info("shutting down")
	return nil
}

func interrupt() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c
}
