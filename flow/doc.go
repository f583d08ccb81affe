// Package flow implements the research orchestration loop: the analyst plans
// one JSON action per turn, tool calls are dispatched through the registry
// under the datarunner role, and the writer synthesizes the final Markdown
// answer. Every step is recorded both as session events and in the returned
// Report consumed by the HTTP layer.
package flow
