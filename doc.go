// Package procflow provides a lightweight, embeddable pause/resume engine
// for multi-turn conversational procedures in Go.
//
// Procflow is designed for assistants and service frontends that walk a
// user through a structured procedure (a permit request, a subsidy
// application, a scheduling flow) one question at a time, across many
// conversational turns. Each turn the caller sends whatever fields the user
// provided; the engine resumes the procedure exactly where it paused,
// validates the input, and either asks for the next field or finishes. It
// runs fully in Go, supports multiple persistence backends, and integrates
// cleanly into existing codebases.
//
// # Core Concepts
//
// The procflow programming model is intentionally small and idiomatic:
//
//  1. Orchestrator
//  2. Registry and Workflow
//  3. GraphBuilder
//  4. FlowContext
//  5. ProcedureState and AgentResponse
//
// # Orchestrator
//
// The Orchestrator receives one Request per conversational turn, resolves
// the target workflow, loads the (user, service) state, executes the turn,
// persists the result, and returns an AgentResponse. A response carrying an
// input schema means the procedure is paused awaiting more input; a
// response without one is terminal.
//
// Orchestrators can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - JSON files on disk
//   - Redis
//   - SQLite (embedded durability)
//   - Redis cache over file storage (composite)
//
// State is partitioned per user and per service, so one user can hold
// several procedures in progress at once without interference.
//
// # Registry and Workflow
//
// A Workflow implements one service procedure. Workflows are registered by
// factory into a Registry, and the Orchestrator instantiates one per turn,
// so workflow values never carry cross-user state. Sending an unknown
// service name is answered with the list of available services rather than
// an error.
//
// # GraphBuilder
//
// GraphBuilder provides the declarative API for step-graph workflows:
// named steps, unconditional edges and ordered conditional transitions,
// driven by an iterative scheduler. A declared step order gives the engine
// backward-navigation support: when the user re-answers an earlier
// question, dependent answers and cached lookups are reset automatically.
//
// Example:
//
//	wf := procflow.NewGraph("tax-guide", "Property tax guidance").
//	    Step("collect_address", collectAddress).
//	    Step("lookup_parcel", lookupParcel).
//	    Edge("collect_address", "lookup_parcel").
//	    Navigator([]string{"address"}, nil).
//	    MustBuild()
//
// # FlowContext
//
// FlowContext is the procedural alternative: the whole procedure is one
// plain Go function that collects input through hooks (Input, Choice,
// MultiChoice, Confirm) and memoizes external lookups with APICall. A hook
// whose answer is missing pauses the flow by returning a typed signal
// error; on the next turn the function re-runs from the top and already
// answered hooks return instantly from stored data. Both engines implement
// the same Workflow interface and can be mixed in one Registry.
//
// # ProcedureState and AgentResponse
//
// ProcedureState is the durable record of one procedure: validated field
// data, an internal cache for API results, status and timestamps.
// AgentResponse is what the caller renders: a description, an optional
// JSON-Schema describing the expected input, and result data. Schemas are
// plain JSON-Schema, so any schema-capable caller (including an LLM
// tool-use loop) can drive the conversation without special casing.
//
// # Summary
//
// Procflow's goal is a conversational procedure engine that feels like Go:
// easy to embed, easy to test, deterministic, and without operational
// overhead. The Orchestrator manages turns and persistence, the Registry
// dispatches services, GraphBuilder and FlowContext define procedures, and
// ProcedureState carries everything a procedure has learned so far.
//
// For examples, see the /examples directory or the project README.
package procflow
