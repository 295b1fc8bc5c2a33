// Package session keeps an application's notion of "who is logged in, with
// what role, and for how long" consistent against an unreliable identity
// provider and an idle user.
//
// Lifecycle:
//   - Controller is the top-level state machine. It consumes identity
//     provider events (signed in, token refreshed, signed out, user updated),
//     drives profile resolution, and publishes a read-only State snapshot to
//     consumers. An internal generation counter guarantees a resolution
//     started for a superseded event never overwrites newer state.
//   - Resolver turns a user id into a Profile: it races the backend query
//     against a timeout, retries transient failures with linear backoff, and
//     degrades to the cached profile or a least-privilege default. Only
//     policy denials and missing profiles terminate the session.
//   - Watchdog ends the session after a quiet period. Activity signals are
//     coalesced so at most one reset happens per window.
//
// Storage:
//   - ProfileCache persists the last good profile per user on top of any
//     KeyValueStore. The store subpackage provides a Bun/SQLite backed
//     implementation that survives process restarts.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the controller for
//     sign-in, sign-out, forced sign-out, and watchdog events. Sink errors
//     are logged so auditing never blocks the session lifecycle.
package session
