// Package pdfread exposes PDF document reading as a research tool. Small
// documents are returned verbatim; large ones are reduced by query-relevance
// filtering and model-backed section summarization so they fit the analyst's
// context.
package pdfread

import (
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/tokenizer"
	"github.com/pharmadb/deepresearch/tool"
)

// DefaultMaxDirectTokens is the size under which a document is returned
// unprocessed.
const DefaultMaxDirectTokens = 8000

// DefaultChunkTokens is the target size of each summarization chunk.
const DefaultChunkTokens = 3000

// Options configures the read_pdf tool.
type Options struct {
	// Summarizer condenses oversized documents. Nil falls back to
	// truncation.
	Summarizer model.Model

	// CounterModel selects the tokenizer encoding used for budgeting.
	CounterModel string

	// MaxDirectTokens is the verbatim-return threshold.
	MaxDirectTokens int

	// ChunkTokens is the summarization chunk size.
	ChunkTokens int

	// Extractor converts raw PDF bytes to plain text. Defaults to the
	// built-in page extractor; tests substitute their own.
	Extractor func(data []byte) (string, error)
}

// readArgs documents the tool's parameter schema.
type readArgs struct {
	FileID string `json:"file_id" description:"Storage object path of the PDF file to read" required:"true"`
	Query  string `json:"query,omitempty" description:"What to look for; large documents are filtered and summarized around this"`
}

// New builds the read_pdf tool.
func New(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := Options{
		CounterModel:    "gpt-4o-mini",
		MaxDirectTokens: DefaultMaxDirectTokens,
		ChunkTokens:     DefaultChunkTokens,
		Extractor:       extractText,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	counter := tokenizer.NewCounter(opts.CounterModel)

	return tool.NewFunctionToolFromStruct(
		"read_pdf",
		"Read the text content of an uploaded PDF file. Large documents are filtered and summarized around the query.",
		readArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			fileID, _ := args["file_id"].(string)
			if strings.TrimSpace(fileID) == "" {
				return nil, fmt.Errorf("file_id must not be empty")
			}
			query, _ := args["query"].(string)

			data, err := toolCtx.DownloadFile(fileID)
			if err != nil {
				return nil, fmt.Errorf("download PDF %q: %w", fileID, err)
			}

			text, err := opts.Extractor(data)
			if err != nil {
				return nil, fmt.Errorf("extract text from %q: %w", fileID, err)
			}

			totalTokens := counter.Count(text)
			if totalTokens <= opts.MaxDirectTokens {
				return text, nil
			}

			if strings.TrimSpace(query) != "" {
				filtered, kept := filterRelevant(text, query, counter, opts.MaxDirectTokens)
				if filtered != "" {
					return fmt.Sprintf("[FILTERED CONTENT - %d tokens from %d total]\n\n%s",
						kept, totalTokens, filtered), nil
				}
			}

			return condense(toolCtx, counter, text, query, totalTokens, opts)
		})
}

// condense shrinks a document that is too large and has no usable relevance
// filter, by chunked summarization when a summarizer is configured and by
// truncation otherwise.
func condense(toolCtx *core.ToolContext, counter *tokenizer.Counter, text, query string, totalTokens int, opts Options) (any, error) {
	chunks := chunkText(text, counter, opts.ChunkTokens)

	if opts.Summarizer != nil {
		summary, err := summarizeChunks(toolCtx, opts.Summarizer, chunks, query)
		if err == nil {
			return fmt.Sprintf("[PROCESSED LARGE PDF - %d tokens condensed into %d summarized sections]\n\n%s",
				totalTokens, len(chunks), summary), nil
		}
		toolCtx.Logger().Warn("pdf.summarize.failed", "error", err.Error())
	}

	truncated := truncateToBudget(text, counter, opts.MaxDirectTokens)
	return fmt.Sprintf("[PROCESSED LARGE PDF - %d tokens truncated to fit context]\n\n%s",
		totalTokens, truncated), nil
}
