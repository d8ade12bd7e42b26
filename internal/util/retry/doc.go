// Package retry retries operations with exponential backoff.
//
// [Do] runs an operation under a [Policy] until it succeeds, the retry
// budget is spent or the context ends. Callers decide which errors are
// transient, either by wrapping permanent ones with [Fatal] or by passing a
// predicate through [If]. Destroy uses it to ride out AWS dependency
// violations while a dependent resource is still being released.
package retry
