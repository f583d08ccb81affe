package tool

import (
	"fmt"
	"time"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/internal/util"
)

// Handler is the implementation signature of a research tool. The tool
// context gives access to run state, file downloads, the model call budget
// and logging; args have already passed schema validation.
type Handler func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool adapts a plain Go function into a registry tool. It validates
// arguments against the declared schema before dispatch and normalizes
// failures into *ToolError values: VALIDATION_ERROR for schema mismatches,
// EXECUTION_ERROR for handler failures, with handler-supplied *ToolError
// codes passed through unchanged. Safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	handler     Handler
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
func NewFunctionTool(name, description string, parameters map[string]any, handler Handler) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		handler:     handler,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from an argument
// struct via reflection; see util.CreateSchema for the tag conventions.
func NewFunctionToolFromStruct(name, description string, structType any, handler Handler) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), handler)
}

// Name returns the tool identifier used in action protocol dispatch.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language summary shown to the analyst.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing accepted arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and invokes the handler, logging start, outcome and
// duration under the invocation's function call id.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.handler(toolCtx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		return nil, asToolError(t.name, err)
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// asToolError passes handler-supplied tool errors through and wraps anything
// else as an execution failure.
func asToolError(toolName string, err error) *ToolError {
	if toolErr, ok := err.(*ToolError); ok {
		return toolErr
	}

	return &ToolError{
		Tool:    toolName,
		Message: err.Error(),
		Code:    "EXECUTION_ERROR",
	}
}
