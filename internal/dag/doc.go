// Package dag builds and evaluates the resource dependency graph.
//
// Each node is a named step. A step declares its inputs as typed references
// to the tasks it depends on ([Task.Value] is only meaningful to dependents),
// so the edges of the graph are exactly the data flow between steps. The
// evaluator runs independent branches concurrently, runs dependents only after
// every dependency succeeded, and keeps evaluating unrelated branches when one
// branch fails.
package dag
