// Package protocol loads and validates the declarative assessment definitions:
// ordered question trees with conditional branching and deterministic severity
// scoring, keyed by risk category. Definitions are parsed once into immutable
// strongly-typed trees at startup and rejected before serving traffic when
// malformed; after load the registry is safely shared across all sessions
// without locking.
package protocol
