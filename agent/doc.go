// Package agent contains the closed set of processing units the coordinator
// invokes per turn:
//
//   - Responder: generates the user-facing supportive reply (and narrates
//     assessment prompts so the visible voice stays consistent)
//   - Classifier: inspects a bounded recent-message window and emits
//     structured risk signals
//   - Assessor: drives one assessment protocol to completion across turns
//
// All three implement core.Agent. The responder and classifier suspend on
// provider calls; the assessor is purely synchronous tree traversal.
package agent
