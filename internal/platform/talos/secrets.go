package talos

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/siderolabs/talos/pkg/machinery/config"
	"github.com/siderolabs/talos/pkg/machinery/config/generate/secrets"
	"gopkg.in/yaml.v3"
)

// SecretsBundle is a type alias for the Talos secrets bundle.
type SecretsBundle = secrets.Bundle

// LoadSecrets loads Talos secrets from a file.
func LoadSecrets(path string) (*SecretsBundle, error) {
	sb, err := secrets.LoadBundle(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets bundle: %w", err)
	}
	if sb == nil {
		return nil, fmt.Errorf("loaded secrets bundle is nil")
	}

	// LoadBundle leaves the clock unset.
	sb.Clock = secrets.NewFixedClock(time.Now())
	return sb, nil
}

// SaveSecrets writes the bundle in the YAML layout LoadBundle reads.
func SaveSecrets(path string, sb *SecretsBundle) error {
	data, err := yaml.Marshal(sb)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// NewSecrets creates a new Talos secrets bundle for the version contract of
// talosVersion.
func NewSecrets(talosVersion string) (*SecretsBundle, error) {
	vc, err := config.ParseContractFromVersion(talosVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version contract: %w", err)
	}
	sb, err := secrets.NewBundle(secrets.NewFixedClock(time.Now()), vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets bundle: %w", err)
	}
	return sb, nil
}

// GetOrGenerateSecrets loads the bundle at path, or generates and saves a new
// one when the file does not exist. The second return value reports whether
// a bundle was generated.
//
// The bundle is the root of the cluster PKI: regenerating it for a running
// cluster locks the client out, so an unreadable file is an error rather than
// a reason to start over.
func GetOrGenerateSecrets(path, talosVersion string) (*SecretsBundle, bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		sb, err := LoadSecrets(path)
		return sb, false, err
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("failed to stat secrets file: %w", err)
	}

	sb, err := NewSecrets(talosVersion)
	if err != nil {
		return nil, false, err
	}
	if err := SaveSecrets(path, sb); err != nil {
		return nil, false, err
	}
	return sb, true, nil
}
