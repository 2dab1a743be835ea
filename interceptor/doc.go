// Package interceptor implements the middleware layer wrapped around task
// and step execution.
//
// An interceptor receives the call description and a next function; it may
// pass through untouched, mutate the call before invoking next (swap the
// model, rewrite the request), transform events streaming back, short-circuit
// without calling next, or invoke next again (retry). Composition is
// outermost-first: ComposeStep([m1, m2], base) runs m1 around m2 around base.
//
// Every event leaving a layer is stamped with the current node's position as
// defaults, so metadata is complete at the outermost layer no matter which
// layer introduced the event. Fields set by inner layers are never
// overwritten.
//
// Interceptor sets travel down the task tree via the Set type and its
// context scope; each interceptor decides for itself whether it applies to
// sub-tasks (Propagator). The default is to stay on the task that
// registered it.
package interceptor
