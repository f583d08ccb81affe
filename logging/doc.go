// Package logging provides a tiny abstraction so downstream code can depend on
// a minimal interface (Logger) while allowing users to plug any structured
// logger. A go.uber.org/zap adapter is included; the service binary wires it
// while library consumers may supply their own.
package logging
