package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/faulty-technology/homelab/internal/util/change"
	"github.com/faulty-technology/homelab/internal/util/retry"
)

// EnsureOperation encapsulates find-or-create logic for a resource.
//
// Usage example:
//
//	id, action, err := (&EnsureOperation[string]{
//	    ResourceType: "vpc",
//	    Name:         name,
//	    Find:         func(ctx context.Context) (string, bool, error) { return c.findVPC(ctx, knownID, name) },
//	    Create:       func(ctx context.Context) (string, error) { return c.createVPC(ctx, name, tags) },
//	}).Execute(ctx)
type EnsureOperation[T any] struct {
	ResourceType string
	Name         string

	// Find returns the existing resource and whether it was found.
	Find func(ctx context.Context) (T, bool, error)

	// Create creates the resource.
	Create func(ctx context.Context) (T, error)

	// Reconcile corrects drift on an existing resource and reports whether it
	// changed anything (optional).
	Reconcile func(ctx context.Context, resource T) (T, bool, error)
}

// Execute performs the ensure operation.
func (op *EnsureOperation[T]) Execute(ctx context.Context) (T, change.Action, error) {
	var zero T

	resource, found, err := op.Find(ctx)
	if err != nil {
		return zero, "", fmt.Errorf("failed to look up %s %s: %w", op.ResourceType, op.Name, err)
	}

	if found {
		if op.Reconcile == nil {
			return resource, change.Unchanged, nil
		}
		resource, updated, err := op.Reconcile(ctx, resource)
		if err != nil {
			return zero, "", fmt.Errorf("failed to update %s %s: %w", op.ResourceType, op.Name, err)
		}
		if updated {
			return resource, change.Updated, nil
		}
		return resource, change.Unchanged, nil
	}

	resource, err = op.Create(ctx)
	if err != nil {
		return zero, "", fmt.Errorf("failed to create %s %s: %w", op.ResourceType, op.Name, err)
	}
	return resource, change.Created, nil
}

// DeleteOperation encapsulates deletion logic for a resource identified by ID.
// The operation is idempotent: an empty ID or a not-found response succeeds.
// Dependency violations are retried with exponential backoff.
type DeleteOperation struct {
	ResourceType string
	ID           string
	Delete       func(ctx context.Context, id string) error
}

// Execute performs the delete operation with retry and timeout handling.
func (op *DeleteOperation) Execute(ctx context.Context, c *Client) (change.Action, error) {
	if op.ID == "" {
		return change.Unchanged, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	deleted := true
	err := retry.Do(ctx, func() error {
		err := op.Delete(ctx, op.ID)
		if IsNotFound(err) {
			deleted = false
			return nil
		}
		return err
	},
		retry.If(isDependencyViolation),
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.OnRetry(func(attempt int, delay time.Duration, err error) {
			if c.onDeleteRetry != nil {
				c.onDeleteRetry(op.ResourceType, op.ID, attempt, delay, err)
			}
		}))
	if err != nil {
		return "", fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
	}
	if !deleted {
		return change.Unchanged, nil
	}
	return change.Deleted, nil
}
