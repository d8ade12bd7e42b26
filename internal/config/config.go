package config

// Region, AvailabilityZone and the CloudWatch Logs group prefix the node
// may write to are fixed for this deployment.
const (
	Region           = "us-east-1"
	AvailabilityZone = "us-east-1a"
	LogGroupPrefix   = "/talos-homelab/"
)

// Defaults applied when a key is absent from every configuration source.
const (
	DefaultClusterName       = "talos-homelab"
	DefaultInstanceType      = "t3a.medium"
	DefaultRootVolumeSize    = 20
	DefaultTalosVersion      = "v1.12.4"
	DefaultAMINamePattern    = "talos-v1.12*"
	DefaultAMIOwner          = "540036508848"
	DefaultKubernetesVersion = "1.35.0"
	DefaultArgoCDChart       = "argo-cd"
	DefaultArgoCDVersion     = "9.3.5"
	DefaultArgoCDRepoURL     = "https://argoproj.github.io/argo-helm"
	DefaultArgoCDValuesFile  = "manifests/argocd/argocd-values.yaml"
	DefaultRootAppFile       = "manifests/argocd/root-app.yaml"
	DefaultGitHubOrgURL      = "https://github.com/faulty-technology"
	DefaultStateDir          = ".homelab"
	DefaultOutputDir         = ".talos"
)

// DefaultAllowedCIDRs leaves the Talos and Kubernetes APIs reachable from anywhere.
var DefaultAllowedCIDRs = []string{"0.0.0.0/0"}

// Config is the desired state of the cluster.
type Config struct {
	ClusterName    string   `mapstructure:"clusterName" yaml:"clusterName"`
	InstanceType   string   `mapstructure:"instanceType" yaml:"instanceType"`
	RootVolumeSize int32    `mapstructure:"rootVolumeSize" yaml:"rootVolumeSize"`
	AllowedCIDRs   []string `mapstructure:"allowedCidrs" yaml:"allowedCidrs"`

	Talos      TalosConfig      `mapstructure:"talos" yaml:"talos"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes"`
	ArgoCD     ArgoCDConfig     `mapstructure:"argocd" yaml:"argocd"`
	GitHub     GitHubConfig     `mapstructure:"github" yaml:"github"`
	AWS        AWSConfig        `mapstructure:"aws" yaml:"aws,omitempty"`

	// Secrets are optional. Each credential bundle gates its own Kubernetes secret.
	Secrets Secrets `mapstructure:"secrets" yaml:"secrets,omitempty"`

	StateDir  string `mapstructure:"stateDir" yaml:"stateDir"`
	OutputDir string `mapstructure:"outputDir" yaml:"outputDir"`
}

// TalosConfig pins the Talos release and the AMI used to boot it.
type TalosConfig struct {
	Version        string `mapstructure:"version" yaml:"version"`
	AMINamePattern string `mapstructure:"amiNamePattern" yaml:"amiNamePattern"`
	AMIOwner       string `mapstructure:"amiOwner" yaml:"amiOwner"`
}

// KubernetesConfig pins the Kubernetes version rendered into the machine config.
type KubernetesConfig struct {
	Version string `mapstructure:"version" yaml:"version"`
}

// ArgoCDConfig describes the ArgoCD Helm release and the root application.
type ArgoCDConfig struct {
	Chart        string `mapstructure:"chart" yaml:"chart"`
	ChartVersion string `mapstructure:"chartVersion" yaml:"chartVersion"`
	RepoURL      string `mapstructure:"repoUrl" yaml:"repoUrl"`
	ValuesFile   string `mapstructure:"valuesFile" yaml:"valuesFile"`
	RootAppFile  string `mapstructure:"rootAppFile" yaml:"rootAppFile"`
}

// GitHubConfig holds the organization URL ArgoCD authenticates against.
type GitHubConfig struct {
	OrgURL string `mapstructure:"org" yaml:"org"`
}

// AWSConfig selects AWS credentials. Empty values fall back to the default chain.
type AWSConfig struct {
	Profile         string `mapstructure:"profile" yaml:"profile,omitempty"`
	AccessKeyID     string `mapstructure:"accessKeyId" yaml:"-"`
	SecretAccessKey string `mapstructure:"secretAccessKey" yaml:"-"`
}

// Secrets are the secret-valued settings.
type Secrets struct {
	CloudflareTunnelToken   string `mapstructure:"cloudflareTunnelToken" yaml:"cloudflareTunnelToken,omitempty"`
	GitHubAppID             string `mapstructure:"githubAppId" yaml:"githubAppId,omitempty"`
	GitHubAppInstallationID string `mapstructure:"githubAppInstallationId" yaml:"githubAppInstallationId,omitempty"`
	GitHubAppPrivateKey     string `mapstructure:"githubAppPrivateKey" yaml:"githubAppPrivateKey,omitempty"`
	NewRelicLicenseKey      string `mapstructure:"newRelicLicenseKey" yaml:"newRelicLicenseKey,omitempty"`
}

// Default returns a Config populated with default values only.
func Default() *Config {
	return &Config{
		ClusterName:    DefaultClusterName,
		InstanceType:   DefaultInstanceType,
		RootVolumeSize: DefaultRootVolumeSize,
		AllowedCIDRs:   append([]string(nil), DefaultAllowedCIDRs...),
		Talos: TalosConfig{
			Version:        DefaultTalosVersion,
			AMINamePattern: DefaultAMINamePattern,
			AMIOwner:       DefaultAMIOwner,
		},
		Kubernetes: KubernetesConfig{Version: DefaultKubernetesVersion},
		ArgoCD: ArgoCDConfig{
			Chart:        DefaultArgoCDChart,
			ChartVersion: DefaultArgoCDVersion,
			RepoURL:      DefaultArgoCDRepoURL,
			ValuesFile:   DefaultArgoCDValuesFile,
			RootAppFile:  DefaultRootAppFile,
		},
		GitHub:    GitHubConfig{OrgURL: DefaultGitHubOrgURL},
		StateDir:  DefaultStateDir,
		OutputDir: DefaultOutputDir,
	}
}
