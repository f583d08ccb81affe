// Package tokenizer wraps tiktoken to provide model-aware token counting for
// prompt budgeting and document chunking decisions.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingInfo maps a model family to its BPE encoding name.
type encodingInfo struct {
	encoding string
}

var modelEncodings = map[string]encodingInfo{
	"gpt-4o":        {encoding: "o200k_base"},
	"gpt-4o-mini":   {encoding: "o200k_base"},
	"gpt-4":         {encoding: "cl100k_base"},
	"gpt-3.5-turbo": {encoding: "cl100k_base"},
}

const defaultEncoding = "cl100k_base"

// Counter counts tokens for a specific model's encoding. The underlying
// tiktoken encoding is initialized lazily on first use; if initialization
// fails (e.g. encoding data unavailable), counting falls back to a ~4 chars
// per token heuristic.
type Counter struct {
	model string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewCounter creates a Counter for the given model name. The model does not
// need to appear in the known encoding table; unknown models use the default
// encoding.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

func (c *Counter) init() {
	name := defaultEncoding
	matched := 0
	for prefix, info := range modelEncodings {
		if strings.HasPrefix(c.model, prefix) && len(prefix) > matched {
			name = info.encoding
			matched = len(prefix)
		}
	}
	c.enc, c.initErr = tiktoken.GetEncoding(name)
}

// Count returns the number of tokens in text under the model's encoding.
func (c *Counter) Count(text string) int {
	c.once.Do(c.init)
	if c.initErr != nil || c.enc == nil {
		return ApproxTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxTokens estimates token count without an encoding, using the common
// ~4 characters per token heuristic. Used as a fallback and in tests.
func ApproxTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
