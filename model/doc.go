// Package model defines the normalized request/response contract between the
// research pipeline and LLM providers, plus a deterministic mock for tests.
// Provider adapters live in subpackages (openai, anthropic).
package model
