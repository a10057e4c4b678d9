// Package aggregator implements McpAggregator:
// it caches each enabled service's capability set, exposes a merged,
// policy-filtered tools/resources/prompts view, and dispatches tools/call
// to the owning upstream via the stdio process manager or the HTTP
// upstream client.
package aggregator
