// Package aws provisions the cluster's AWS networking, compute and IAM
// resources with aws-sdk-go-v2.
//
// Every Ensure* function is idempotent: it first looks the resource up (by the
// ID recorded in state, then by its Name and Project tags) and only creates or
// corrects what is missing. Provider errors are returned wrapped but otherwise
// untouched; nothing here retries during apply. Deletes, which routinely race
// AWS dependency propagation, do retry.
package aws
