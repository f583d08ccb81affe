package core

import (
	"encoding/json"
	"fmt"
)

// Part type discriminators used by the JSON encoding of Content.
const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFile             = "file"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// partEnvelope is the wire representation of a Part. A type discriminator
// selects which of the payload fields is populated. Session stores rely on
// this encoding to round-trip event history through Redis.
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	File             *FileRef          `json:"file,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

type contentWire struct {
	Role  string         `json:"role,omitempty"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON encodes the content using typed part envelopes.
func (c Content) MarshalJSON() ([]byte, error) {
	wire := contentWire{Role: c.Role, Parts: make([]partEnvelope, 0, len(c.Parts))}
	for _, p := range c.Parts {
		env, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		wire.Parts = append(wire.Parts, env)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes typed part envelopes back into concrete Part values.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire contentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, env := range wire.Parts {
		p, err := decodePart(env)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, p)
	}
	return nil
}

func encodePart(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: partTypeText, Text: v.Text, Metadata: v.Metadata}, nil
	case DataPart:
		return partEnvelope{Type: partTypeData, Data: v.Data, Metadata: v.Metadata}, nil
	case FilePart:
		file := v.File
		return partEnvelope{Type: partTypeFile, File: &file, Metadata: v.Metadata}, nil
	case FunctionCallPart:
		call := v.FunctionCall
		return partEnvelope{Type: partTypeFunctionCall, FunctionCall: &call, Metadata: v.Metadata}, nil
	case FunctionResponsePart:
		resp := v.FunctionResponse
		return partEnvelope{Type: partTypeFunctionResponse, FunctionResponse: &resp, Metadata: v.Metadata}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unsupported part type %T", p)
	}
}

func decodePart(env partEnvelope) (Part, error) {
	switch env.Type {
	case partTypeText:
		return TextPart{Text: env.Text, Metadata: env.Metadata}, nil
	case partTypeData:
		return DataPart{Data: env.Data, Metadata: env.Metadata}, nil
	case partTypeFile:
		var file FileRef
		if env.File != nil {
			file = *env.File
		}
		return FilePart{File: file, Metadata: env.Metadata}, nil
	case partTypeFunctionCall:
		var call FunctionCall
		if env.FunctionCall != nil {
			call = *env.FunctionCall
		}
		return FunctionCallPart{FunctionCall: call, Metadata: env.Metadata}, nil
	case partTypeFunctionResponse:
		var resp FunctionResponse
		if env.FunctionResponse != nil {
			resp = *env.FunctionResponse
		}
		return FunctionResponsePart{FunctionResponse: resp, Metadata: env.Metadata}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", env.Type)
	}
}
