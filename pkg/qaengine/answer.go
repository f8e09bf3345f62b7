package qaengine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/corpusforge/platform/ent"
)

// sentinelNotFound is returned verbatim by the LLM when no answer is present
// in the supplied passages.
const sentinelNotFound = "<<ANSWER_NOT_FOUND>>"

// minRetryAverageScore is the set-level grounding average below which a
// retry with feedback is requested, mirroring the original agent QA's
// citation-validation loop.
const minRetryAverageScore = 0.7

// defaultMaxRetries bounds how many times Execute will re-ask the LLM after
// an ungrounded first answer.
const defaultMaxRetries = 1

// passage is one chunk's text pulled from object storage, kept alongside its
// source chunk row so citations can be grounded back to a document_id.
type passage struct {
	chunk *ent.Chunk
	text  string
}

func (e *Executor) loadChunkText(ctx context.Context, chunks []*ent.Chunk) ([]passage, error) {
	passages := make([]passage, 0, len(chunks))
	for _, c := range chunks {
		data, err := e.store.Get(ctx, c.S3Key)
		if err != nil {
			return nil, fmt.Errorf("reading chunk %s: %w", c.ChunkID, err)
		}
		passages = append(passages, passage{chunk: c, text: string(data)})
	}
	return passages, nil
}

// composeContext concatenates passages in chunk order. weights is currently
// a placeholder for the retrieval ranking step (C7): once hybrid search
// lands, passages will be reordered by a blend of keyword and vector scores
// before truncation instead of the document's natural chunk order.
func composeContext(passages []passage, weights HybridWeights) string {
	var b strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&b, "[[document:%d]]\n", p.chunk.DocumentID)
		b.WriteString(p.text)
		b.WriteString("\n\n")
	}
	_ = weights
	return b.String()
}

// extractedCitation is a citation as it appears in any of the three tolerated
// JSON shapes, before grounding.
type extractedCitation struct {
	DocumentID int    `json:"document_id"`
	QuoteText  string `json:"quote_text"`
}

// extractedItem is one answer item before it is turned into a typed Go
// value and persisted.
type extractedItem struct {
	Value       string              `json:"value"`
	ParsedDate  string              `json:"parsed_date"`
	Amount      *float64            `json:"amount"`
	Currency    string              `json:"currency"`
	OptionID    string              `json:"option_id"`
	OptionValue string              `json:"option_value"`
	Confidence  float64             `json:"confidence"`
	Citations   []extractedCitation `json:"citations"`
}

// currentEnvelope is the shape the output-format prompts ask for.
type currentEnvelope struct {
	Items []extractedItem `json:"items"`
}

// legacyNestedEnvelope is the older agent-QA response shape: answers each
// carrying their own citations under "quote_text" or "quote".
type legacyNestedEnvelope struct {
	Answers []struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
		Citations  []struct {
			DocumentID int    `json:"document_id"`
			QuoteText  string `json:"quote_text"`
			Quote      string `json:"quote"`
		} `json:"citations"`
	} `json:"answers"`
}

// legacyFlatEnvelope is the oldest shape: a single top-level citations list
// attached implicitly to one answer.
type legacyFlatEnvelope struct {
	Value     string `json:"value"`
	Citations []struct {
		DocumentID int    `json:"document_id"`
		QuoteText  string `json:"quote_text"`
		Quote      string `json:"quote"`
	} `json:"citations"`
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON finds the LLM's answer payload in raw free-form text: the
// not-found sentinel first, then a fenced ```json code block, then the first
// well-formed top-level JSON object. notFound is true only for the sentinel
// case, in which case jsonText is empty.
func extractJSON(raw string) (jsonText string, notFound bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(trimmed, sentinelNotFound) {
		return "", true, nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1], false, nil
	}

	start := strings.Index(trimmed, "{")
	if start == -1 {
		return "", false, fmt.Errorf("qaengine: no JSON object found in response")
	}
	depth := 0
	for i := start; i < len(trimmed); i++ {
		switch trimmed[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := trimmed[start : i+1]
				var probe json.RawMessage
				if json.Unmarshal([]byte(candidate), &probe) == nil {
					return candidate, false, nil
				}
			}
		}
	}
	return "", false, fmt.Errorf("qaengine: no well-formed JSON object found in response")
}

// normalizeItems parses jsonText under each tolerated shape in turn,
// returning the first that parses into at least one item.
func normalizeItems(jsonText string) ([]extractedItem, error) {
	var current currentEnvelope
	if err := json.Unmarshal([]byte(jsonText), &current); err == nil && len(current.Items) > 0 {
		return current.Items, nil
	}

	var nested legacyNestedEnvelope
	if err := json.Unmarshal([]byte(jsonText), &nested); err == nil && len(nested.Answers) > 0 {
		items := make([]extractedItem, 0, len(nested.Answers))
		for _, a := range nested.Answers {
			item := extractedItem{Value: a.Value, Confidence: a.Confidence}
			for _, c := range a.Citations {
				quote := c.QuoteText
				if quote == "" {
					quote = c.Quote
				}
				item.Citations = append(item.Citations, extractedCitation{DocumentID: c.DocumentID, QuoteText: quote})
			}
			items = append(items, item)
		}
		return items, nil
	}

	var flat legacyFlatEnvelope
	if err := json.Unmarshal([]byte(jsonText), &flat); err == nil && len(flat.Citations) > 0 {
		item := extractedItem{Value: flat.Value}
		for _, c := range flat.Citations {
			quote := c.QuoteText
			if quote == "" {
				quote = c.Quote
			}
			item.Citations = append(item.Citations, extractedCitation{DocumentID: c.DocumentID, QuoteText: quote})
		}
		return []extractedItem{item}, nil
	}

	return nil, fmt.Errorf("qaengine: response JSON matched none of the tolerated answer shapes")
}

// groundedCitation is one citation after grounding against the retrieved
// passages.
type groundedCitation struct {
	documentID int
	quoteText  string
	score      float64
	grounded   bool
	warning    bool
	errMessage string
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// groundCitation scores one citation against the document it claims to come
// from, per the four-tier algorithm: exact substring (1.0), normalized
// substring (0.95), fuzzy sliding-window match at >=90% or >=70% (with the
// ratio itself as the score), else ungrounded.
func groundCitation(passages []passage, c extractedCitation) groundedCitation {
	if c.DocumentID == 0 || strings.TrimSpace(c.QuoteText) == "" {
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, errMessage: "missing document_id or quote_text"}
	}

	var content string
	found := false
	for _, p := range passages {
		if p.chunk.DocumentID == c.DocumentID {
			content += p.text + "\n"
			found = true
		}
	}
	if !found {
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, errMessage: "document not available"}
	}

	if strings.Contains(content, c.QuoteText) {
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, score: 1.0, grounded: true}
	}

	normContent := normalize(content)
	normQuote := normalize(c.QuoteText)
	if normQuote != "" && strings.Contains(normContent, normQuote) {
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, score: 0.95, grounded: true}
	}

	ratio := bestSubstringSimilarity(normContent, normQuote)
	switch {
	case ratio >= 0.90:
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, score: ratio, grounded: true}
	case ratio >= 0.70:
		return groundedCitation{documentID: c.DocumentID, quoteText: c.QuoteText, score: ratio, grounded: true, warning: true}
	default:
		return groundedCitation{
			documentID: c.DocumentID,
			quoteText:  c.QuoteText,
			score:      ratio,
			errMessage: fmt.Sprintf("Quote not found (similarity=%d%%)", int(ratio*100)),
		}
	}
}

// bestSubstringSimilarity scores how well quote matches anywhere inside
// text. Rather than diffing the whole (much longer) document against a short
// quote, it slides a window sized to the quote and keeps the best score —
// cheap enough for chunk-sized passages and robust to the quote being a
// fragment of a larger document.
func bestSubstringSimilarity(text, quote string) float64 {
	quote = strings.TrimSpace(quote)
	if quote == "" || text == "" {
		return 0
	}
	if len(quote) >= len(text) {
		return levenshtein.Match(text, quote, nil)
	}

	best := 0.0
	step := len(quote) / 2
	if step == 0 {
		step = 1
	}
	for start := 0; start+len(quote) <= len(text); start += step {
		window := text[start : start+len(quote)]
		if s := levenshtein.Match(window, quote, nil); s > best {
			best = s
		}
	}
	return best
}

// groundedAnswer is one item after its citations have been scored.
type groundedAnswer struct {
	item       extractedItem
	citations  []groundedCitation
	avgScore   float64
}

// groundItems grounds every citation of every item and reports the overall
// average score across all citations of all items — the set-level score the
// retry decision is based on. An item with zero citations contributes no
// score (average is computed only over cited items).
func groundItems(passages []passage, items []extractedItem) ([]groundedAnswer, float64) {
	results := make([]groundedAnswer, 0, len(items))
	var total float64
	var count int
	for _, item := range items {
		ga := groundedAnswer{item: item}
		for _, c := range item.Citations {
			gc := groundCitation(passages, c)
			ga.citations = append(ga.citations, gc)
			total += gc.score
			count++
		}
		if count > 0 {
			ga.avgScore = total / float64(count)
		}
		results = append(results, ga)
	}
	overall := 0.0
	if count > 0 {
		overall = total / float64(count)
	}
	return results, overall
}

// retryFeedback composes the message sent back to the LLM when the set-level
// grounding average falls short, enumerating each ungrounded citation and
// reiterating the exact-quote requirement.
func retryFeedback(results []groundedAnswer) string {
	var b strings.Builder
	b.WriteString("Some of your citations could not be verified against the source documents:\n\n")
	for _, ga := range results {
		for _, c := range ga.citations {
			if c.grounded && !c.warning {
				continue
			}
			msg := c.errMessage
			if msg == "" && c.warning {
				msg = fmt.Sprintf("low-confidence match (similarity=%d%%)", int(c.score*100))
			}
			fmt.Fprintf(&b, "- document %d: %q — %s\n", c.documentID, c.quoteText, msg)
		}
	}
	b.WriteString("\nPlease re-check these and respond again, quoting the exact source text verbatim for every citation.")
	return b.String()
}

// persistAnswer writes the AnswerSet/Answer/Citation rows for one grounded
// response set in a single transaction.
func (e *Executor) persistAnswer(ctx context.Context, companyID int, results []groundedAnswer, overallScore float64) (int, error) {
	answerFound := len(results) > 0

	tx, err := e.client.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}

	answerSet, err := tx.AnswerSet.Create().
		SetCompanyID(companyID).
		SetAnswerFound(answerFound).
		Save(ctx)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("creating answer set: %w", err)
	}

	for order, ga := range results {
		confidence := ga.item.Confidence
		if confidence <= 0 {
			confidence = 1
		}
		if overallScore < 1.0 {
			confidence *= overallScore
		}

		answer, err := tx.Answer.Create().
			SetAnswerSetID(answerSet.ID).
			SetAnswerType("text").
			SetAnswerData(itemToAnswerData(ga.item)).
			SetConfidence(confidence).
			SetAnswerOrder(order).
			Save(ctx)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("creating answer: %w", err)
		}

		for i, c := range ga.citations {
			if !c.grounded {
				continue
			}
			if _, err := tx.Citation.Create().
				SetAnswerID(answer.ID).
				SetDocumentID(c.documentID).
				SetQuoteText(c.quoteText).
				SetCitationOrder(i).
				SetGroundingScore(c.score).
				Save(ctx); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("creating citation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing answer: %w", err)
	}
	return answerSet.ID, nil
}

func itemToAnswerData(item extractedItem) map[string]interface{} {
	data := map[string]interface{}{"value": item.Value}
	if item.ParsedDate != "" {
		data["parsed_date"] = item.ParsedDate
	}
	if item.Amount != nil {
		data["amount"] = *item.Amount
	}
	if item.Currency != "" {
		data["currency"] = item.Currency
	}
	if item.OptionID != "" {
		data["option_id"] = item.OptionID
	}
	if item.OptionValue != "" {
		data["option_value"] = item.OptionValue
	}
	return data
}
