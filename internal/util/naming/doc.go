// Package naming provides the naming scheme for every cluster resource.
//
// All resources are named "<cluster>-<suffix>" so they can be found by tag
// and torn down together.
package naming
