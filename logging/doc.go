// Package logging provides a tiny abstraction over slog so the engine can
// depend on a minimal interface (Logger) while letting callers plug any
// structured logger. It also offers a richer EngineLogger with contextual
// helpers (session, turn, component) and domain specific helpers for provider
// calls, risk signals and assessments.
package logging
