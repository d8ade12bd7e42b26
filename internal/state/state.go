// Package state persists what a run has created, so a later run can find,
// reuse or delete those resources.
//
// The record lives in a state directory (".homelab" by default) next to the
// Talos secrets bundle and is guarded by an exclusive file lock.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 1

const (
	stateFile   = "state.yaml"
	secretsFile = "secrets.yaml"
	lockFile    = ".lock"
)

// State is the persisted record of a cluster.
type State struct {
	Version     int    `yaml:"version"`
	ClusterName string `yaml:"clusterName,omitempty"`

	AWS        AWSResources    `yaml:"aws"`
	Talos      TalosState      `yaml:"talos"`
	Kubernetes KubernetesState `yaml:"kubernetes"`

	// Files maps a local file path to the content hash last written there.
	Files map[string]string `yaml:"files,omitempty"`
}

// AWSResources holds identifiers of the cloud resources.
type AWSResources struct {
	VPCID                   string `yaml:"vpcId,omitempty"`
	SubnetID                string `yaml:"subnetId,omitempty"`
	InternetGatewayID       string `yaml:"internetGatewayId,omitempty"`
	RouteTableID            string `yaml:"routeTableId,omitempty"`
	RouteTableAssociationID string `yaml:"routeTableAssociationId,omitempty"`
	SecurityGroupID         string `yaml:"securityGroupId,omitempty"`
	RoleName                string `yaml:"roleName,omitempty"`
	InstanceProfileName     string `yaml:"instanceProfileName,omitempty"`
	InstanceProfileARN      string `yaml:"instanceProfileArn,omitempty"`
	AllocationID            string `yaml:"allocationId,omitempty"`
	AssociationID           string `yaml:"associationId,omitempty"`
	PublicIP                string `yaml:"publicIp,omitempty"`
	InstanceID              string `yaml:"instanceId,omitempty"`
	PrivateIP               string `yaml:"privateIp,omitempty"`
	AMIID                   string `yaml:"amiId,omitempty"`
	AMIName                 string `yaml:"amiName,omitempty"`
	BucketName              string `yaml:"bucketName,omitempty"`
}

// TalosState tracks the node's configuration lifecycle.
type TalosState struct {
	ConfigHash   string `yaml:"configHash,omitempty"`
	Bootstrapped bool   `yaml:"bootstrapped,omitempty"`
}

// KubernetesState tracks in-cluster objects that are expensive to re-apply.
type KubernetesState struct {
	ArgoCDReleaseDigest string `yaml:"argocdReleaseDigest,omitempty"`
	ArgoCDAdminPassword string `yaml:"argocdAdminPassword,omitempty"`
}

// Store reads and writes state under a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the state file path.
func (s *Store) Path() string { return filepath.Join(s.dir, stateFile) }

// SecretsPath returns the path of the Talos secrets bundle.
func (s *Store) SecretsPath() string { return filepath.Join(s.dir, secretsFile) }

// Load reads the state file. A missing file yields an empty state.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return &State{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.Path(), err)
	}
	if st.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", st.Version, CurrentVersion)
	}
	st.Version = CurrentVersion
	return &st, nil
}

// Save writes the state file atomically with owner-only permissions.
func (s *Store) Save(st *State) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, stateFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set state permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
