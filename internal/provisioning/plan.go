package provisioning

import (
	"errors"
	"fmt"
	"time"

	"github.com/faulty-technology/homelab/internal/dag"
	"github.com/faulty-technology/homelab/internal/platform/aws"
	"github.com/faulty-technology/homelab/internal/platform/talos"
	"github.com/faulty-technology/homelab/internal/util/labels"
)

// Step names. The prefix before the colon is the step's group.
const (
	StepAMI                = "aws:ami"
	StepVPC                = "aws:vpc"
	StepSubnet             = "aws:subnet"
	StepInternetGateway    = "aws:internet-gateway"
	StepRouteTable         = "aws:route-table"
	StepSecurityGroup      = "aws:security-group"
	StepInstanceRole       = "aws:instance-role"
	StepRolePolicies       = "aws:role-policies"
	StepInstanceProfile    = "aws:instance-profile"
	StepElasticIP          = "aws:elastic-ip"
	StepInstance           = "aws:instance"
	StepAddressAssociation = "aws:eip-association"
	StepBackupBucket       = "s3:backup-bucket"

	StepTalosSecrets  = "talos:secrets"
	StepMachineConfig = "talos:machine-config"
	StepClientConfig  = "talos:client-config"
	StepApplyConfig   = "talos:apply-config"
	StepBootstrap     = "talos:bootstrap"
	StepHealth        = "talos:health"
	StepKubeconfig    = "talos:kubeconfig"

	StepKubeClient    = "kubernetes:client"
	StepNamespaces    = "kubernetes:namespaces"
	StepSecrets       = "kubernetes:secrets"
	StepArgoCD        = "argocd:release"
	StepRootApp       = "argocd:root-app"
	StepAdminPassword = "argocd:admin-password"

	StepWriteKubeconfig  = "local:kubeconfig"
	StepWriteTalosconfig = "local:talosconfig"

	StepOutputs = "outputs"
)

// Step groups used when rendering the graph.
const (
	groupAWS        = "aws"
	groupTalos      = "talos"
	groupKubernetes = "kubernetes"
	groupLocal      = "local"
)

// machineConfig is a rendered machine configuration and its digest.
type machineConfig struct {
	Data []byte
	Hash string
}

// Plan is the dependency graph of one provisioning run.
type Plan struct {
	ctx      *Context
	platform Platform
	graph    *dag.Graph

	ami             *dag.Task[aws.Image]
	vpc             *dag.Task[string]
	subnet          *dag.Task[string]
	igw             *dag.Task[string]
	routeTable      *dag.Task[aws.RouteTable]
	securityGroup   *dag.Task[string]
	role            *dag.Task[string]
	policies        *dag.Task[struct{}]
	profile         *dag.Task[aws.InstanceProfile]
	eip             *dag.Task[aws.ElasticIP]
	instance        *dag.Task[aws.Instance]
	association     *dag.Task[string]
	bucket          *dag.Task[string]
	generator       *dag.Task[*talos.Generator]
	machineConfig   *dag.Task[machineConfig]
	clientConfig    *dag.Task[[]byte]
	node            *dag.Task[TalosNode]
	bootstrap       *dag.Task[struct{}]
	health          *dag.Task[string]
	kubeconfig      *dag.Task[[]byte]
	workloads       *dag.Task[Workloads]
	namespaces      *dag.Task[struct{}]
	secrets         *dag.Task[struct{}]
	argocd          *dag.Task[struct{}]
	rootApp         *dag.Task[struct{}]
	adminPassword   *dag.Task[struct{}]
	writeKubeconfig *dag.Task[struct{}]
	writeTalos      *dag.Task[struct{}]
	outputs         *dag.Task[Outputs]
}

// NewPlan declares every step and its dependencies. Nothing runs until Run.
func NewPlan(ctx *Context, platform Platform) *Plan {
	p := &Plan{ctx: ctx, platform: platform, graph: dag.New()}
	p.addNetwork()
	p.addIdentity()
	p.addCompute()
	p.addTalos()
	p.addWorkloads()
	p.addLocalFiles()
	p.addOutputs()
	return p
}

// Graph returns the underlying graph.
func (p *Plan) Graph() *dag.Graph { return p.graph }

// Order returns the steps in a valid execution order.
func (p *Plan) Order() ([]string, error) { return p.graph.Order() }

// Run executes the plan with at most concurrency steps in flight. Phase
// events go to the context's observer; extra hooks run after them.
func (p *Plan) Run(concurrency int, extra ...dag.Hooks) (Outputs, *dag.Report, error) {
	obs := p.ctx.Observer
	total := p.graph.Len()
	done := 0

	hooks := dag.Hooks{
		OnStart: func(name string) {
			LogPhaseStart(obs, name)
			for _, h := range extra {
				if h.OnStart != nil {
					h.OnStart(name)
				}
			}
		},
		OnFinish: func(res dag.Result) {
			switch res.Status {
			case dag.StatusSucceeded:
				LogPhaseComplete(obs, res.Name, res.Duration)
			case dag.StatusSkipped:
				LogPhaseSkipped(obs, res.Name, res.Err)
			default:
				LogPhaseFailed(obs, res.Name, res.Err)
			}
			done++
			obs.Progress("apply", done, total)
			for _, h := range extra {
				if h.OnFinish != nil {
					h.OnFinish(res)
				}
			}
		},
	}

	start := time.Now()
	report, err := p.graph.Run(p.ctx, dag.WithConcurrency(concurrency), dag.WithHooks(hooks))
	if err != nil {
		return Outputs{}, report, fmt.Errorf("provisioning failed after %v: %w", time.Since(start).Round(time.Second), err)
	}
	return p.outputs.Value(), report, nil
}

// tags returns the standard tags with Name set.
func (p *Plan) tags(name string) map[string]string {
	return labels.For(p.ctx.Config.ClusterName, name, nil)
}

// errMissingOutput guards steps that read a dependency's value.
var errMissingOutput = errors.New("dependency produced no value")
