// Package session provides core.SessionStore implementations: a process-local
// in-memory store and a Redis backed store for deployments that need session
// history to survive restarts or be shared across replicas.
package session
