// Package memory contains concrete core.Memory implementations. The store
// interface lives in the core package; depend on core.Memory in your code and
// select an implementation (the in-memory store below, or the Redis-backed
// store in the redis subpackage) at wiring time.
//
// Trimming policies are external decorators over any core.Memory, so the
// window a model sees is a presentation concern and never mutates the
// underlying log.
package memory
