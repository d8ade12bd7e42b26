// Package labels provides consistent tagging of AWS resources.
//
// Every resource carries a Name tag plus the Project and ManagedBy tags, which
// is how existing resources are found again when no state record exists.
package labels
