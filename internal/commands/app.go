package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fundsync-dev/fundsync/internal/config"
	"github.com/fundsync-dev/fundsync/internal/credentials"
	"github.com/fundsync-dev/fundsync/internal/forward"
	"github.com/fundsync-dev/fundsync/internal/history"
	"github.com/fundsync-dev/fundsync/internal/ingest"
	"github.com/fundsync-dev/fundsync/internal/logging"
	"github.com/fundsync-dev/fundsync/internal/model"
)

type globalOptions struct {
	configPath string
	envFile    string
}

// loadConfig reads the config file, falling back to defaults when it does not
// exist, and applies environment overrides. A relative data_dir resolves
// against the config file's directory.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}

	vars, err := config.ReadEnvFile(o.envFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", o.envFile, err)
	}
	cfg.ApplyEnv(vars)

	if !filepath.IsAbs(cfg.Storage.DataDir) {
		cfg.Storage.DataDir = filepath.Join(filepath.Dir(o.configPath), cfg.Storage.DataDir)
	}
	return cfg, nil
}

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	creds     *credentials.FileStore
	store     *history.Store
	forwarder *forward.Forwarder
	pipeline  *ingest.Pipeline
}

func (o *globalOptions) open(logOut io.Writer) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	creds := credentials.NewFileStore(cfg.CredentialsPath())
	store := history.Open(cfg.HistoryPath(),
		history.WithCapacity(cfg.Storage.Capacity),
		history.WithLogger(logger),
	)
	fwd := forward.New(cfg.Forward(), creds,
		forward.WithLogger(logger),
		forward.WithStateStore(credentials.NewStateFile(cfg.StatePath())),
	)
	pipeline := ingest.New(ingest.Config{
		Forwarder: fwd,
		Store:     store,
		Message:   cfg.Streamlabs.Message,
		Logger:    logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		creds:     creds,
		store:     store,
		forwarder: fwd,
		pipeline:  pipeline,
	}, nil
}

// drain waits for in-flight forwards so their outcomes are recorded, then
// shuts the forwarder down.
func (a *app) drain() {
	a.forwarder.Wait()
	a.forwarder.Close()
}

// printEvents writes every recorded event to w until the returned function is
// called.
func (a *app) printEvents(w io.Writer) (stop func()) {
	var mu sync.Mutex
	return a.pipeline.Subscribe(func(ev model.PaymentEvent) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, describeEvent(ev))
	})
}

func describeEvent(ev model.PaymentEvent) string {
	if !ev.Success {
		msg := model.UnknownError
		if ev.ErrorMessage != nil {
			msg = *ev.ErrorMessage
		}
		return fmt.Sprintf("FAILED  ₹%s from %s: %s", ev.Amount, ev.Sender, msg)
	}
	if ev.DonationID != nil {
		return fmt.Sprintf("SENT    ₹%s from %s (donation %s)", ev.Amount, ev.Sender, *ev.DonationID)
	}
	return fmt.Sprintf("SAVED   ₹%s from %s", ev.Amount, ev.Sender)
}
