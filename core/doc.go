// Package core provides the foundational domain types and interfaces shared by
// the conversation engine. It defines:
//
//   - Messages (immutable, append-only conversational records)
//   - Sessions (per-conversation state: history, mode, risk queue, assessment)
//   - Risk signals and assessment severity verdicts
//   - Chunks (the streamed fragment unit delivered to the transport boundary)
//   - Agents (the closed set of invocable processing units)
//   - Collaborator ports for durable persistence, summaries and audit records
//
// The package intentionally keeps implementation concerns (providers, protocol
// traversal, orchestration) out of scope, exposing small interfaces so higher
// layers can be wired against custom backends.
package core
