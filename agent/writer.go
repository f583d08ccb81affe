package agent

import (
	"github.com/pharmadb/deepresearch/model"
)

// NewWriter configures a ModelAgent as the synthesis role. It receives the
// question, the analyst's summary and the gathered evidence, and produces the
// final Markdown answer.
func NewWriter(llm model.Model, optFns ...func(o *ModelOptions)) *ModelAgent {
	instruction := NewInstructionFromText(
		"You are an expert report writer for a pharmaceutical research service. " +
			"Synthesize the provided findings, data and summaries into a clear, concise, " +
			"well-formatted Markdown answer that directly addresses the user's original " +
			"research question. Your output must be Markdown.")

	a := NewModelAgent(WriterName, llm, append([]func(o *ModelOptions){func(o *ModelOptions) {
		o.Instruction = instruction
	}}, optFns...)...)

	a.SetDescription("Synthesizes gathered evidence into the final Markdown answer.")

	return a
}
