package agent

import (
	"fmt"

	"github.com/pharmadb/deepresearch/logging"
)

// Base bundles the identity and logging shared by concrete agents. Embed it
// and supply a Run method to satisfy the core.Agent interface.
type Base struct {
	name        string
	description string
	logger      logging.Logger
}

// NewBase constructs a Base with a generated description, customizable via
// SetDescription.
func NewBase(name string, logger logging.Logger) Base {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return Base{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
		logger:      logger,
	}
}

// Name returns the agent's name.
func (b *Base) Name() string { return b.name }

// Description returns the agent's purpose description.
func (b *Base) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *Base) SetDescription(desc string) { b.description = desc }

// Logger returns the agent's logger, never nil.
func (b *Base) Logger() logging.Logger { return b.logger }
