// Package storage provides core.FileStore implementations for the research
// file bucket: a process-local in-memory store for tests and local
// development, a Supabase Storage REST client, and an S3 client for
// S3-compatible buckets.
package storage
