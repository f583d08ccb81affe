package pdfread

import (
	"fmt"
	"strings"

	"github.com/pharmadb/deepresearch/core"
	"github.com/pharmadb/deepresearch/model"
	"github.com/pharmadb/deepresearch/tokenizer"
)

// minKeywordLen filters short stop words out of query keyword extraction.
const minKeywordLen = 4

// phraseBonus rewards sections containing the full query verbatim.
const phraseBonus = 10

// domainKeywords bias relevance scoring toward regulatory and clinical
// content, English and Spanish.
var domainKeywords = []string{
	"approval", "aprobacion", "drug", "medicamento", "clinical", "trial",
	"estudio", "safety", "efficacy", "dose", "regulatory", "patient",
	"treatment", "indication",
}

// filterRelevant keeps the document sections that best match the query, in
// document order, up to budget tokens. Returns the filtered text and the
// token count kept; empty text means nothing scored as relevant.
func filterRelevant(text, query string, counter *tokenizer.Counter, budget int) (string, int) {
	keywords := queryKeywords(query)
	if len(keywords) == 0 {
		return "", 0
	}

	sections := splitSections(text)
	queryLower := strings.ToLower(query)

	type scored struct {
		index int
		score int
	}
	var hits []scored
	for i, section := range sections {
		lower := strings.ToLower(section)
		queryScore := 0
		for _, kw := range keywords {
			queryScore += strings.Count(lower, kw) * 2
		}
		if strings.Contains(lower, queryLower) {
			queryScore += phraseBonus
		}
		// Domain terms only boost sections that already match the query.
		if queryScore == 0 {
			continue
		}
		score := queryScore
		for _, kw := range domainKeywords {
			score += strings.Count(lower, kw)
		}
		hits = append(hits, scored{index: i, score: score})
	}
	if len(hits) == 0 {
		return "", 0
	}

	// Highest scores claim the budget first, but the output preserves
	// document order.
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].score > hits[i].score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}

	kept := make(map[int]bool)
	used := 0
	for _, h := range hits {
		cost := counter.Count(sections[h.index])
		if used+cost > budget {
			continue
		}
		kept[h.index] = true
		used += cost
	}
	if len(kept) == 0 {
		return "", 0
	}

	var out []string
	for i, section := range sections {
		if kept[i] {
			out = append(out, section)
		}
	}
	return strings.Join(out, "\n\n"), used
}

// queryKeywords extracts lowercase content words from the query.
func queryKeywords(query string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len(word) >= minKeywordLen {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// splitSections breaks the document on blank lines and page separators.
func splitSections(text string) []string {
	var sections []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "-"))
		part = strings.TrimSpace(part)
		if part != "" {
			sections = append(sections, part)
		}
	}
	return sections
}

// chunkText splits text into pieces of at most chunkTokens tokens, breaking
// on paragraph boundaries and falling back to sentence boundaries for
// oversized paragraphs.
func chunkText(text string, counter *tokenizer.Counter, chunkTokens int) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
	}

	add := func(piece string) {
		cost := counter.Count(piece)
		if currentTokens+cost > chunkTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
		currentTokens += cost
	}

	for _, para := range splitSections(text) {
		if counter.Count(para) <= chunkTokens {
			add(para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			add(sentence)
		}
	}
	flush()

	return chunks
}

// splitSentences is a crude sentence splitter good enough for chunk
// boundaries.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '.' && i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

const summarizerInstructions = `You condense pharmaceutical and regulatory documents. Summarize the given
document section faithfully. Preserve drug names, companies, countries, dates,
dosages and approval statuses exactly as written. Do not add information.`

// summarizeChunks condenses each chunk with the model and labels the results
// as numbered sections. Every chunk costs one call from the run's shared
// model call budget, so oversized documents cannot generate unbounded spend.
func summarizeChunks(toolCtx *core.ToolContext, m model.Model, chunks []string, query string) (string, error) {
	temperature := 0.1
	maxTokens := int64(800)
	config := &model.GenerationConfig{Temperature: &temperature, MaxTokens: &maxTokens}

	var sections []string
	for i, chunk := range chunks {
		if err := toolCtx.SpendModelCall(); err != nil {
			return "", fmt.Errorf("summarize section %d of %d: %w", i+1, len(chunks), err)
		}

		prompt := chunk
		if strings.TrimSpace(query) != "" {
			prompt = fmt.Sprintf("Focus on information relevant to: %s\n\n%s", query, chunk)
		}

		summary, err := model.GenerateText(toolCtx.Context(), m, model.Request{
			Instructions: summarizerInstructions,
			Contents: []core.Content{{
				Role:  "user",
				Parts: []core.Part{core.TextPart{Text: prompt}},
			}},
			Config: config,
		})
		if err != nil {
			return "", fmt.Errorf("summarize section %d of %d: %w", i+1, len(chunks), err)
		}
		sections = append(sections, fmt.Sprintf("[SECTION %d]\n%s", i+1, strings.TrimSpace(summary)))
	}

	return strings.Join(sections, "\n\n"), nil
}

// truncateToBudget cuts text at a paragraph boundary near the token budget.
func truncateToBudget(text string, counter *tokenizer.Counter, budget int) string {
	var b strings.Builder
	used := 0
	for _, para := range splitSections(text) {
		cost := counter.Count(para)
		if used+cost > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(para)
		used += cost
	}
	if b.Len() == 0 {
		// First paragraph alone busts the budget; hard-cut by characters.
		limit := budget * 4
		if limit < len(text) {
			return text[:limit]
		}
		return text
	}
	return b.String()
}
