// Package coordinator is the orchestration core. It owns the per-turn
// pipeline: gate the session, fan out to the responder and the risk
// classifier concurrently, relay streamed fragments to the caller, and commit
// history, mode transitions and the audit record only once the stream
// completes. Public methods are safe for concurrent use.
package coordinator
