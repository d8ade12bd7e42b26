package labels

import (
	"maps"
	"slices"
)

// Tag keys set on every resource.
const (
	KeyName      = "Name"
	KeyProject   = "Project"
	KeyManagedBy = "ManagedBy"
)

// ManagedByHomelab is the ManagedBy tag value.
const ManagedByHomelab = "homelab"

// For returns the tags of the resource called name in cluster. Extra tags
// are added on top and cannot override the standard keys.
func For(cluster, name string, extra map[string]string) map[string]string {
	tags := make(map[string]string, len(extra)+3)
	maps.Copy(tags, extra)
	tags[KeyName] = name
	tags[KeyProject] = cluster
	tags[KeyManagedBy] = ManagedByHomelab
	return tags
}

// Keys returns the tag keys sorted, so requests built from a map are stable.
func Keys(tags map[string]string) []string {
	return slices.Sorted(maps.Keys(tags))
}
