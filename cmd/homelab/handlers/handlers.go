// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/state"
)

// Globals are the settings shared by every command.
type Globals struct {
	Viper      *viper.Viper
	ConfigPath string
	Verbose    bool
	Out        io.Writer
}

func (g Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig loads and validates configuration.
	loadConfig = func(g Globals) (*config.Config, error) {
		v := g.Viper
		if v == nil {
			v = config.NewViper()
		}
		return config.Load(v, g.ConfigPath)
	}

	// newLogger builds the logger behind the provisioning observer.
	newLogger = func(verbose bool) logr.Logger {
		return zap.New(zap.UseDevMode(verbose), zap.WriteTo(os.Stderr))
	}

	// newPlatform creates the production cloud, Talos and Kubernetes backends.
	newPlatform = provisioning.NewPlatform
)

// session is an opened state directory together with a provisioning context.
type session struct {
	cfg    *config.Config
	store  *state.Store
	ctx    *provisioning.Context
	unlock func() error
}

// openSession loads state for cfg. With lock set, the state directory is
// held exclusively until close is called.
func openSession(ctx context.Context, cfg *config.Config, observer provisioning.Observer, lock bool) (*session, error) {
	store := state.NewStore(cfg.StateDir)

	unlock := func() error { return nil }
	if lock {
		var err error
		if unlock, err = store.Lock(); err != nil {
			return nil, err
		}
	}

	st, err := store.Load()
	if err != nil {
		_ = unlock()
		return nil, err
	}
	if st.ClusterName != "" && st.ClusterName != cfg.ClusterName {
		_ = unlock()
		return nil, fmt.Errorf("state in %s belongs to cluster %q, not %q", cfg.StateDir, st.ClusterName, cfg.ClusterName)
	}

	return &session{
		cfg:    cfg,
		store:  store,
		ctx:    provisioning.NewContext(ctx, cfg, store, st, observer),
		unlock: unlock,
	}, nil
}

func (s *session) close() {
	_ = s.unlock()
}
