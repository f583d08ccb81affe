package agent

import "github.com/pharmadb/deepresearch/core"

// InstructionProvider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from session state, the registered
// tool catalog, or a per-request override.
type InstructionProvider interface {
	Instruction(*core.RunContext) (string, error)
}

// InstructionFunc adapts an ordinary function into an InstructionProvider.
type InstructionFunc func(*core.RunContext) (string, error)

// Instruction implements InstructionProvider.
func (f InstructionFunc) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction represents either a static instruction string or a dynamic
// provider, mirroring a string | provider union in a Go-idiomatic way.
type Instruction struct {
	text     string
	provider InstructionProvider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p InstructionProvider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: InstructionFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}
