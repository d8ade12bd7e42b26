package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "HOMELAB"

// DefaultConfigFile is read when no explicit --config path is given.
const DefaultConfigFile = "homelab.yaml"

// envAliases maps config keys to friendlier environment variable names in
// addition to the automatic HOMELAB_<KEY> form.
var envAliases = map[string]string{
	"clusterName":                     "HOMELAB_CLUSTER_NAME",
	"instanceType":                    "HOMELAB_INSTANCE_TYPE",
	"rootVolumeSize":                  "HOMELAB_ROOT_VOLUME_SIZE",
	"allowedCidrs":                    "HOMELAB_ALLOWED_CIDRS",
	"aws.profile":                     "AWS_PROFILE",
	"aws.accessKeyId":                 "HOMELAB_AWS_ACCESS_KEY_ID",
	"aws.secretAccessKey":             "HOMELAB_AWS_SECRET_ACCESS_KEY",
	"secrets.cloudflareTunnelToken":   "HOMELAB_CLOUDFLARE_TUNNEL_TOKEN",
	"secrets.githubAppId":             "HOMELAB_GITHUB_APP_ID",
	"secrets.githubAppInstallationId": "HOMELAB_GITHUB_APP_INSTALLATION_ID",
	"secrets.githubAppPrivateKey":     "HOMELAB_GITHUB_APP_PRIVATE_KEY",
	"secrets.newRelicLicenseKey":      "HOMELAB_NEW_RELIC_LICENSE_KEY",
}

// NewViper returns a viper instance with defaults registered and environment
// lookups enabled. Callers may bind command-line flags on it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("clusterName", d.ClusterName)
	v.SetDefault("instanceType", d.InstanceType)
	v.SetDefault("rootVolumeSize", d.RootVolumeSize)
	v.SetDefault("allowedCidrs", d.AllowedCIDRs)
	v.SetDefault("talos.version", d.Talos.Version)
	v.SetDefault("talos.amiNamePattern", d.Talos.AMINamePattern)
	v.SetDefault("talos.amiOwner", d.Talos.AMIOwner)
	v.SetDefault("kubernetes.version", d.Kubernetes.Version)
	v.SetDefault("argocd.chart", d.ArgoCD.Chart)
	v.SetDefault("argocd.chartVersion", d.ArgoCD.ChartVersion)
	v.SetDefault("argocd.repoUrl", d.ArgoCD.RepoURL)
	v.SetDefault("argocd.valuesFile", d.ArgoCD.ValuesFile)
	v.SetDefault("argocd.rootAppFile", d.ArgoCD.RootAppFile)
	v.SetDefault("github.org", d.GitHub.OrgURL)
	v.SetDefault("stateDir", d.StateDir)
	v.SetDefault("outputDir", d.OutputDir)

	for key, env := range envAliases {
		// The automatic HOMELAB_<KEY> name stays valid alongside the alias.
		autoEnv := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, env, autoEnv)
	}

	return v
}

// Load reads configuration from path (if it exists) layered under the
// environment and any flags bound on v, then validates the result.
//
// An empty path means DefaultConfigFile, which may be absent. An explicit path
// that does not exist is an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Write saves cfg as YAML. The file may contain secrets, so it is owner-only.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
