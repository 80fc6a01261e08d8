// Package provider defines the uniform interface over interchangeable
// text-generation backends (synchronous generation, streamed generation and
// token counting) plus the ordered-failover call helper used by the
// coordinator. Concrete backends live in sub-packages (openai, anthropic); a
// deterministic Mock lives here for tests and examples.
package provider
