package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/s3"
	"github.com/faulty-technology/homelab/internal/provisioning"
	"github.com/faulty-technology/homelab/internal/provisioning/destroy"
	"github.com/faulty-technology/homelab/internal/ui"
)

// ErrNotConfirmed is returned when destroy is declined or cannot be confirmed.
var ErrNotConfirmed = errors.New("destroy not confirmed")

// Provisioner interface for testing - matches *destroy.Provisioner.
type Provisioner interface {
	Provision(ctx *provisioning.Context) error
}

// Factory function variables for destroy - can be replaced in tests.
var (
	// newDestroyProvisioner creates a destroy provisioner backed by AWS.
	newDestroyProvisioner = func(ctx context.Context, cfg *config.Config, pctx *provisioning.Context, opts destroy.Options) (Provisioner, error) {
		awsCfg, err := aws.LoadConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		cloud := aws.NewClient(awsCfg, pctx.Timeouts).OnDeleteRetry(reportRetry(pctx.Observer))
		return destroy.NewProvisioner(cloud, s3.NewClient(awsCfg), opts), nil
	}

	// isTerminal reports whether stdin is interactive.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// confirmDestroy asks the user to confirm teardown of cluster.
	confirmDestroy = func(ctx context.Context, cluster string) (bool, error) {
		var ok bool
		err := huh.NewForm(huh.NewGroup(huh.NewConfirm().
			Title(fmt.Sprintf("Destroy cluster %s?", cluster)).
			Description("Every AWS resource recorded in state is deleted. This cannot be undone.").
			Affirmative("Destroy").
			Negative("Cancel").
			Value(&ok))).
			WithShowHelp(false).
			RunWithContext(ctx)
		return ok, err
	}
)

// DestroyOptions are the flags of the destroy command.
type DestroyOptions struct {
	Yes           bool
	DeleteBackups bool
}

// Destroy deletes the AWS resources recorded in state in reverse creation
// order. The etcd backup bucket is kept unless DeleteBackups is set.
//
// Without Yes the user is asked to confirm; a non-interactive session
// without Yes fails with ErrNotConfirmed.
func Destroy(ctx context.Context, g Globals, opts DestroyOptions) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	if !opts.Yes {
		if !isTerminal() {
			return fmt.Errorf("%w: pass --yes to destroy %s non-interactively", ErrNotConfirmed, cfg.ClusterName)
		}
		ok, err := confirmDestroy(ctx, cfg.ClusterName)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotConfirmed, err)
		}
		if !ok {
			return ErrNotConfirmed
		}
	}

	observer := provisioning.NewLogrObserver(newLogger(g.Verbose))
	s, err := openSession(ctx, cfg, observer, true)
	if err != nil {
		return err
	}
	defer s.close()

	destroyer, err := newDestroyProvisioner(ctx, cfg, s.ctx, destroy.Options{DeleteBackups: opts.DeleteBackups})
	if err != nil {
		return fmt.Errorf("failed to initialize platform clients: %w", err)
	}

	if err := destroyer.Provision(s.ctx); err != nil {
		fmt.Fprint(g.out(), ui.RenderSummary("Destroy failed: "+cfg.ClusterName, s.ctx.Changes, nil))
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Fprint(g.out(), ui.RenderSummary("Destroyed: "+cfg.ClusterName, s.ctx.Changes, nil))
	return nil
}

// reportRetry emits a progress event for each delete blocked by a dependency.
func reportRetry(observer provisioning.Observer) aws.RetryFunc {
	return func(resourceType, id string, attempt int, delay time.Duration, err error) {
		observer.WithFields(map[string]string{
			"attempt": strconv.Itoa(attempt),
			"delay":   delay.String(),
		}).Event(provisioning.Event{
			Type:     provisioning.EventProgress,
			Phase:    "destroy",
			Resource: resourceType + " " + id,
			Message:  "waiting for dependent resources",
			Err:      err,
		})
	}
}
