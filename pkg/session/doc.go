/*
Package session implements session management and persistence orchestration.

It provides high-level abstractions for handling concurrent access to wizard sessions
across multiple replicas, integrating per-session locks with distributed locking
and the state store adapters. Manager.Submit runs the two-phase submission that keeps
the busy guard effective while remote calls are in flight.
*/
package session
