package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Timeouts bounds the waits of a provisioning run. Each value can be
// overridden through a HOMELAB_* environment variable; see LoadTimeouts.
type Timeouts struct {
	InstanceRunning time.Duration // EC2 instance reaching running
	TalosAPI        time.Duration // Talos API accepting the machine config
	Bootstrap       time.Duration // single etcd bootstrap call
	Health          time.Duration // cluster health gate
	Helm            time.Duration // ArgoCD release install or upgrade
	Delete          time.Duration // each destroy call
	PollInterval    time.Duration

	// Destroy retries dependency violations this many times, starting at
	// RetryInitialDelay and doubling.
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
}

// DefaultTimeouts returns the values used when nothing is overridden.
func DefaultTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:   10 * time.Minute,
		TalosAPI:          10 * time.Minute,
		Bootstrap:         10 * time.Minute,
		Health:            15 * time.Minute,
		Helm:              5 * time.Minute,
		Delete:            5 * time.Minute,
		PollInterval:      10 * time.Second,
		RetryMaxAttempts:  10,
		RetryInitialDelay: 2 * time.Second,
	}
}

// timeoutEnv lists the override variable of each duration field.
var timeoutEnv = map[string]func(*Timeouts) *time.Duration{
	"HOMELAB_INSTANCE_TIMEOUT":    func(t *Timeouts) *time.Duration { return &t.InstanceRunning },
	"HOMELAB_TALOS_API_TIMEOUT":   func(t *Timeouts) *time.Duration { return &t.TalosAPI },
	"HOMELAB_BOOTSTRAP_TIMEOUT":   func(t *Timeouts) *time.Duration { return &t.Bootstrap },
	"HOMELAB_HEALTH_TIMEOUT":      func(t *Timeouts) *time.Duration { return &t.Health },
	"HOMELAB_HELM_TIMEOUT":        func(t *Timeouts) *time.Duration { return &t.Helm },
	"HOMELAB_DELETE_TIMEOUT":      func(t *Timeouts) *time.Duration { return &t.Delete },
	"HOMELAB_POLL_INTERVAL":       func(t *Timeouts) *time.Duration { return &t.PollInterval },
	"HOMELAB_RETRY_INITIAL_DELAY": func(t *Timeouts) *time.Duration { return &t.RetryInitialDelay },
}

// LoadTimeouts applies environment overrides on top of DefaultTimeouts.
// Unset, unparsable and non-positive values keep the default. Durations use
// Go syntax ("90s", "15m"); HOMELAB_RETRY_MAX_ATTEMPTS is an integer.
func LoadTimeouts() *Timeouts {
	t := DefaultTimeouts()
	for env, field := range timeoutEnv {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		if d, err := cast.ToDurationE(raw); err == nil && d > 0 {
			*field(t) = d
		}
	}
	if raw := os.Getenv("HOMELAB_RETRY_MAX_ATTEMPTS"); raw != "" {
		if n, err := cast.ToIntE(raw); err == nil && n >= 0 {
			t.RetryMaxAttempts = n
		}
	}
	return t
}
