// Package policy implements PolicyResolver: a
// pure function composing a project-level override with a service's
// default policy into the single effective ToolPolicy for a (project,
// service) pair, plus the per-request memoization the aggregator uses
// while answering one tools/list or tools/call.
package policy
