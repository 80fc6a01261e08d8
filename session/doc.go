// Package session owns the authoritative in-process Session objects, one per
// (user, conversation) pair. All mutation flows through Memory, which also
// enforces the per-session turn gate: overlapping turns for one session are
// rejected rather than interleaved. Cross-session summarization lives here
// too; closed conversations collapse into a SessionSummary that seeds the
// same user's next conversation.
package session
