package talos

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	machineapi "github.com/siderolabs/talos/pkg/machinery/api/machine"
	"github.com/siderolabs/talos/pkg/machinery/client"
	clientconfig "github.com/siderolabs/talos/pkg/machinery/client/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/faulty-technology/homelab/internal/config"
)

// ApplyMode names how a machine config reached the node.
type ApplyMode string

const (
	// ApplyModeAuto is an authenticated apply; Talos decides whether to reboot.
	ApplyModeAuto ApplyMode = "auto"
	// ApplyModeMaintenance is the first apply over the insecure maintenance API.
	ApplyModeMaintenance ApplyMode = "maintenance"
)

// MachineClient is the subset of the Talos machine API used by Node.
type MachineClient interface {
	ApplyConfiguration(ctx context.Context, req *machineapi.ApplyConfigurationRequest, callOptions ...grpc.CallOption) (*machineapi.ApplyConfigurationResponse, error)
	Bootstrap(ctx context.Context, req *machineapi.BootstrapRequest) error
	ServiceList(ctx context.Context, callOptions ...grpc.CallOption) (*machineapi.ServiceListResponse, error)
	EtcdMemberList(ctx context.Context, req *machineapi.EtcdMemberListRequest, callOptions ...grpc.CallOption) (*machineapi.EtcdMemberListResponse, error)
	EtcdSnapshot(ctx context.Context, req *machineapi.EtcdSnapshotRequest, callOptions ...grpc.CallOption) (io.ReadCloser, error)
	Kubeconfig(ctx context.Context) ([]byte, error)
	Version(ctx context.Context, callOptions ...grpc.CallOption) (*machineapi.VersionResponse, error)
	Close() error
}

// Dialer opens a connection to the Talos API.
type Dialer func(ctx context.Context, opts ...client.OptionFunc) (MachineClient, error)

func dialTalos(ctx context.Context, opts ...client.OptionFunc) (MachineClient, error) {
	c, err := client.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Node talks to the cluster node through its public endpoint.
type Node struct {
	talosConfig *clientconfig.Config
	endpoint    string
	address     string
	timeouts    *config.Timeouts

	dial   Dialer
	readyz ReadyzProbe
}

// NewNode creates a client for the node at address, dialled through endpoint.
func NewNode(talosconfig []byte, endpoint, address string, timeouts *config.Timeouts) (*Node, error) {
	cfg, err := clientconfig.FromBytes(talosconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse talosconfig: %w", err)
	}
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Node{
		talosConfig: cfg,
		endpoint:    endpoint,
		address:     address,
		timeouts:    timeouts,
		dial:        dialTalos,
		readyz:      httpReadyz,
	}, nil
}

// WithDialer replaces the Talos API dialer.
func (n *Node) WithDialer(d Dialer) *Node {
	n.dial = d
	return n
}

// WithReadyzProbe replaces the Kubernetes API readiness probe.
func (n *Node) WithReadyzProbe(p ReadyzProbe) *Node {
	n.readyz = p
	return n
}

// Endpoint returns the public address the node is dialled through.
func (n *Node) Endpoint() string { return n.endpoint }

// Address returns the private address the node identifies as.
func (n *Node) Address() string { return n.address }

func (n *Node) withClient(ctx context.Context, fn func(ctx context.Context, c MachineClient) error) error {
	c, err := n.dial(ctx, client.WithConfig(n.talosConfig), client.WithEndpoints(n.endpoint))
	if err != nil {
		return fmt.Errorf("failed to create talos client: %w", err)
	}
	defer func() { _ = c.Close() }()

	return fn(client.WithNode(ctx, n.address), c)
}

func (n *Node) withMaintenanceClient(ctx context.Context, fn func(ctx context.Context, c MachineClient) error) error {
	c, err := n.dial(ctx,
		client.WithEndpoints(n.endpoint),
		//nolint:gosec // the maintenance API serves a self-signed certificate
		client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
	)
	if err != nil {
		return fmt.Errorf("failed to create talos maintenance client: %w", err)
	}
	defer func() { _ = c.Close() }()

	return fn(ctx, c)
}

// ApplyConfig applies the machine config. A configured node takes it over the
// authenticated API in AUTO mode. A node still in maintenance mode rejects
// the client certificate, so the config goes over the insecure maintenance
// API with a reboot. The node is polled until one of the two succeeds.
func (n *Node) ApplyConfig(ctx context.Context, machineConfig []byte) (ApplyMode, error) {
	var (
		mode    ApplyMode
		lastErr error
	)
	err := wait.PollUntilContextTimeout(ctx, n.timeouts.PollInterval, n.timeouts.TalosAPI, true, func(ctx context.Context) (bool, error) {
		err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
			_, err := c.ApplyConfiguration(ctx, &machineapi.ApplyConfigurationRequest{
				Data: machineConfig,
				Mode: machineapi.ApplyConfigurationRequest_AUTO,
			})
			return err
		})
		if err == nil {
			mode = ApplyModeAuto
			return true, nil
		}
		if !isConnectionError(err) {
			return false, fmt.Errorf("failed to apply configuration: %w", err)
		}

		err = n.withMaintenanceClient(ctx, func(ctx context.Context, c MachineClient) error {
			_, err := c.ApplyConfiguration(ctx, &machineapi.ApplyConfigurationRequest{
				Data: machineConfig,
				Mode: machineapi.ApplyConfigurationRequest_REBOOT,
			})
			return err
		})
		if err == nil {
			mode = ApplyModeMaintenance
			return true, nil
		}
		lastErr = err
		return false, nil
	})
	if err != nil {
		if lastErr != nil && wait.Interrupted(err) {
			return "", fmt.Errorf("talos API on %s did not accept the configuration: %w", n.endpoint, lastErr)
		}
		return "", err
	}
	return mode, nil
}

// Bootstrap initializes etcd. It reports false when etcd was already
// bootstrapped. Calls are retried while the node is still rebooting, up to
// the bootstrap timeout.
func (n *Node) Bootstrap(ctx context.Context) (bool, error) {
	bootstrapped := true
	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, n.timeouts.PollInterval, n.timeouts.Bootstrap, true, func(ctx context.Context) (bool, error) {
		err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
			return c.Bootstrap(ctx, &machineapi.BootstrapRequest{})
		})
		switch {
		case err == nil:
			return true, nil
		case status.Code(err) == codes.AlreadyExists:
			bootstrapped = false
			return true, nil
		case isConnectionError(err) || status.Code(err) == codes.FailedPrecondition:
			lastErr = err
			return false, nil
		default:
			return false, fmt.Errorf("failed to bootstrap etcd: %w", err)
		}
	})
	if err != nil {
		if lastErr != nil && wait.Interrupted(err) {
			return false, fmt.Errorf("etcd bootstrap did not complete within %v: %w", n.timeouts.Bootstrap, lastErr)
		}
		return false, err
	}
	return bootstrapped, nil
}

// Kubeconfig retrieves the admin kubeconfig from the node.
func (n *Node) Kubeconfig(ctx context.Context) ([]byte, error) {
	var data []byte
	err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
		var err error
		data, err = c.Kubeconfig(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve kubeconfig: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("node returned an empty kubeconfig")
	}
	return data, nil
}

// EtcdSnapshot streams an etcd snapshot from the node into memory.
func (n *Node) EtcdSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
		r, err := c.EtcdSnapshot(ctx, &machineapi.EtcdSnapshotRequest{})
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take etcd snapshot: %w", err)
	}
	return data, nil
}

// Version returns the Talos version tag running on the node.
func (n *Node) Version(ctx context.Context) (string, error) {
	var tag string
	err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
		resp, err := c.Version(ctx)
		if err != nil {
			return err
		}
		if len(resp.Messages) == 0 || resp.Messages[0].Version == nil {
			return errors.New("no version information returned")
		}
		tag = resp.Messages[0].Version.Tag
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return tag, nil
}

// isConnectionError reports errors seen while the node is unreachable or
// still serving the maintenance API.
func isConnectionError(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied, codes.DeadlineExceeded:
		return true
	}
	return false
}
