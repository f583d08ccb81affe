// Package agent contains the LLM-backed roles of the research pipeline. Base
// provides identity and logging shared by all agents, ModelAgent wires a
// language model with resolvable instructions, and the Analyst / Writer
// constructors configure ModelAgent for their roles in the research loop.
package agent
