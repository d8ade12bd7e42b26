package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{
		"Name":      "talos-homelab-vpc",
		"Project":   "talos-homelab",
		"ManagedBy": "homelab",
	}, For("talos-homelab", "talos-homelab-vpc", nil))
}

func TestFor_ExtraCannotOverrideStandardKeys(t *testing.T) {
	t.Parallel()

	extra := map[string]string{"Role": "backup", "Project": "other"}
	tags := For("talos-homelab", "bucket", extra)

	assert.Equal(t, "backup", tags["Role"])
	assert.Equal(t, "talos-homelab", tags["Project"])
	assert.Equal(t, "other", extra["Project"], "extra is not modified")
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"ManagedBy", "Name", "Project"}, Keys(For("c", "n", nil)))
}
