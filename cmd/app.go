package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"modhost/pkg/bus"
	"modhost/pkg/config"
	"modhost/pkg/logger"
	"modhost/pkg/metrics"
	"modhost/pkg/module"
	"modhost/pkg/modules"
	"modhost/pkg/resources"
	"modhost/pkg/settings"
	"modhost/pkg/store"
	"modhost/pkg/store/memory"
	"modhost/pkg/store/sqlite"
	"modhost/pkg/workspace"
)

// app holds the host components shared by run and ui.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    store.Store
	bus      *bus.MessageBus
	registry *settings.Registry
	metrics  *metrics.Collector
	host     *module.Host
	modules  []string
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	guard, err := workspace.NewGuard(cfg.Modules.ResourceRoot)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("prepare resource root: %w", err)
	}
	res := resources.NewService(guard, resources.WithLogger(log))

	mods, err := modules.Select(cfg.Modules.Enabled, modules.Deps{Resources: res})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	mb := bus.NewMessageBus(bus.WithQueueSize(cfg.Lifecycle.QueueSize))
	registry := settings.New(st, settings.WithLogger(log))
	host := module.NewHost(mb, registry,
		module.WithLogger(log),
		module.WithMetrics(collector),
		module.WithInitTimeout(cfg.Lifecycle.InitTimeout()),
		module.WithResourceRoot(guard.Root()),
	)

	// A module that fails to load is reported and skipped.
	if err := host.LoadAll(mods...); err != nil {
		log.Error("Some modules failed to load", "error", err)
	}

	loaded := host.Processes()
	if len(loaded) == 0 {
		mb.Close()
		_ = st.Close()
		return nil, errors.New("no modules loaded")
	}
	ids := make([]string, 0, len(loaded))
	for _, p := range loaded {
		ids = append(ids, p.Identity().ID)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		bus:      mb,
		registry: registry,
		metrics:  collector,
		host:     host,
		modules:  ids,
	}, nil
}

func (a *app) Close() error {
	a.bus.Close()
	return a.store.Close()
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite, "":
		path, err := workspace.ExpandHome(strings.TrimSpace(cfg.Path))
		if err != nil {
			return nil, err
		}
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open settings store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// loadConfig loads the config and installs the process logger writing to w.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewWithWriter(cfg.Logging, w)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger, nil
}
