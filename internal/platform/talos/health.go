package talos

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	machineapi "github.com/siderolabs/talos/pkg/machinery/api/machine"
	"k8s.io/apimachinery/pkg/util/wait"
)

// ReadyzProbe reports whether the Kubernetes API server on host is serving.
type ReadyzProbe func(ctx context.Context, host string) (bool, error)

// httpReadyz calls /readyz anonymously. 401 and 403 still prove the API
// server is up and answering; they only mean anonymous auth is disabled.
func httpReadyz(ctx context.Context, host string) (bool, error) {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			//nolint:gosec // the serving cert is checked later through the kubeconfig
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	url := "https://" + net.JoinHostPort(host, strconv.Itoa(KubernetesAPIPort)) + "/readyz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
		return true, nil
	default:
		return false, nil
	}
}

// HealthReport is the last observed state of the health gate.
type HealthReport struct {
	Etcd      bool
	Kubelet   bool
	Members   int
	APIServer bool
}

// Ready reports whether every check passed.
func (r HealthReport) Ready() bool {
	return r.Etcd && r.Kubelet && r.Members > 0 && r.APIServer
}

func (r HealthReport) String() string {
	return fmt.Sprintf("etcd=%t kubelet=%t etcdMembers=%d apiserver=%t", r.Etcd, r.Kubelet, r.Members, r.APIServer)
}

// WaitHealthy blocks until etcd and kubelet run healthy, etcd has a member and
// the Kubernetes API answers on the endpoint. It returns the endpoint that
// passed the checks.
func (n *Node) WaitHealthy(ctx context.Context) (string, error) {
	var last HealthReport
	err := wait.PollUntilContextTimeout(ctx, n.timeouts.PollInterval, n.timeouts.Health, true, func(ctx context.Context) (bool, error) {
		report, err := n.checkHealth(ctx)
		last = report
		if err != nil {
			return false, nil
		}
		return report.Ready(), nil
	})
	if err != nil {
		return "", fmt.Errorf("cluster did not become healthy within %v (%s): %w", n.timeouts.Health, last, err)
	}
	return n.endpoint, nil
}

// CheckHealth runs the health checks once.
func (n *Node) CheckHealth(ctx context.Context) (HealthReport, error) {
	return n.checkHealth(ctx)
}

func (n *Node) checkHealth(ctx context.Context) (HealthReport, error) {
	var report HealthReport
	err := n.withClient(ctx, func(ctx context.Context, c MachineClient) error {
		services, err := c.ServiceList(ctx)
		if err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}
		for _, msg := range services.Messages {
			for _, svc := range msg.Services {
				switch svc.Id {
				case "etcd":
					report.Etcd = serviceHealthy(svc)
				case "kubelet":
					report.Kubelet = serviceHealthy(svc)
				}
			}
		}

		members, err := c.EtcdMemberList(ctx, &machineapi.EtcdMemberListRequest{})
		if err != nil {
			return fmt.Errorf("failed to list etcd members: %w", err)
		}
		for _, msg := range members.Messages {
			report.Members += len(msg.Members)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	ok, err := n.readyz(ctx, n.endpoint)
	if err != nil {
		return report, err
	}
	report.APIServer = ok
	return report, nil
}

func serviceHealthy(svc *machineapi.ServiceInfo) bool {
	if svc.State != "Running" {
		return false
	}
	return svc.Health == nil || svc.Health.Healthy
}
