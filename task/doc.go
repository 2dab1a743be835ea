// Package task implements the agent loop: a state machine that repeatedly
// calls a model, dispatches the tool calls it requests, and appends the
// resulting messages to the task's memory until a stop condition fires.
//
// A Task is a reusable definition (model, tools, instructions, termination
// rules) holding no per-run state; Execute starts one run of it and returns
// the run's event stream plus a single-value result channel. Tool calls run
// concurrently, each under its own execution node, with their lifecycle
// events merged into the step's stream as they happen. A Task can itself be
// exposed as a tool, nesting a full agent loop under a single tool call of
// its parent.
package task
