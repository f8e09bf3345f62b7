// Package qarouter implements C5: the pure decision of whether a question
// should be answered by the local single-pass QA path or dispatched to the
// agentic, tool-using workflow, plus the agent path's prompt composition.
//
// Grounded on original_source/backend/packages/qa/services/qa_routing_service.py
// (routing decision, exercised by
// backend/tests/unit/packages/qa/services/test_qa_routing_service.py) and
// original_source/agents/qa/src/prompt_composer.py (four-part prompt
// composition). The original's prompt text files live under a prompts/
// directory that is not part of the retrieved source pack; the section
// bodies below are written fresh in the same structural shape.
package qarouter

import (
	"fmt"
	"strings"
)

// Reason names why a question was routed the way it was.
type Reason string

// Routing reasons, mirrored from the original's QARoutingReason enum.
const (
	ReasonQuestionFlag Reason = "question_flag"
	ReasonDocumentSize Reason = "document_size"
	ReasonDefault      Reason = "default"
)

// Decision is the outcome of a routing call.
type Decision struct {
	UseAgentQA     bool
	Reason         Reason
	IsAutoRouted   bool
	TotalCharCount int
}

// DefaultCharThreshold is the document-size auto-routing threshold used when
// a deployment doesn't override it. Named after settings.agent_qa_char_threshold
// in the original.
const DefaultCharThreshold = 400_000

// Route decides whether questionUseAgentQA or the combined extracted
// character count of the question's documents routes this question to the
// agent QA path. threshold <= 0 falls back to DefaultCharThreshold.
//
// The explicit per-question flag always wins; only when it's unset does
// document size get a chance to auto-route. Exactly at the threshold still
// routes local — the original's test suite asserts this boundary with
// totalCharCount == threshold.
func Route(questionUseAgentQA bool, totalCharCount int, threshold int) Decision {
	if threshold <= 0 {
		threshold = DefaultCharThreshold
	}

	if questionUseAgentQA {
		return Decision{UseAgentQA: true, Reason: ReasonQuestionFlag, TotalCharCount: totalCharCount}
	}
	if totalCharCount > threshold {
		return Decision{UseAgentQA: true, Reason: ReasonDocumentSize, IsAutoRouted: true, TotalCharCount: totalCharCount}
	}
	return Decision{UseAgentQA: false, Reason: ReasonDefault, TotalCharCount: totalCharCount}
}

// QuestionType selects the agent's output-format prompt section.
type QuestionType string

// Supported question types, mirrored from QuestionTypeName.
const (
	QuestionTypeText     QuestionType = "text"
	QuestionTypeDate     QuestionType = "date"
	QuestionTypeCurrency QuestionType = "currency"
	QuestionTypeSelect   QuestionType = "select"
)

// MatrixType selects the agent's analysis-style prompt section.
type MatrixType string

// Supported matrix types, mirrored from MatrixType.
const (
	MatrixTypeStandard           MatrixType = "standard"
	MatrixTypeCrossCorrelation   MatrixType = "cross_correlation"
	MatrixTypeGenericCorrelation MatrixType = "generic_correlation"
)

// PromptRequest carries everything AgentPrompt needs to compose one
// question's mega-prompt.
type PromptRequest struct {
	MatrixType   MatrixType
	QuestionType QuestionType
	QuestionText string
	DocumentIDs  []int
	Options      []string // only rendered for QuestionTypeSelect
	MinAnswers   int
	MaxAnswers   *int // nil means unbounded
}

const orchestrationSection = `# AGENT INSTRUCTIONS

You have access to MCP tools for reading a document's chunks on demand:
list_chunks(document_id) to see what's available, and read_chunk(document_id, chunk_id)
to fetch one chunk's text. Documents are large; do not assume you have seen the
whole of one until you have read every chunk relevant to the question.

Work iteratively: read a chunk, decide whether it answers the question or
points you toward another chunk, and keep reading until you can answer with a
grounded citation or are confident the answer is not present.`

const standardAnalysisSection = `# ANALYSIS STYLE

Answer using only the content of the documents provided. Every answer must be
backed by at least one citation that quotes the exact source text.`

const correlationAnalysisSection = `# ANALYSIS STYLE

This is a cross-document analysis. Compare and reconcile information across
all provided documents before answering; note any conflicts you find between
documents in your reasoning, and cite the specific document each piece of
supporting text came from.`

func analysisSection(matrixType MatrixType) string {
	switch matrixType {
	case MatrixTypeCrossCorrelation, MatrixTypeGenericCorrelation:
		return correlationAnalysisSection
	default:
		return standardAnalysisSection
	}
}

func outputFormatSection(questionType QuestionType) string {
	switch questionType {
	case QuestionTypeDate:
		return `# OUTPUT FORMAT

Respond with a JSON object: {"items": [{"value": "<raw date text>", "parsed_date": "<ISO-8601 or null>", "confidence": <0-1>, "citations": [{"document_id": <id>, "quote_text": "<exact quote>"}]}]}.
If no date is found, respond with the exact text ` + "`<<ANSWER_NOT_FOUND>>`" + ` and nothing else.`
	case QuestionTypeCurrency:
		return `# OUTPUT FORMAT

Respond with a JSON object: {"items": [{"value": "<raw amount text>", "amount": <number or null>, "currency": "<ISO-4217 or null>", "confidence": <0-1>, "citations": [{"document_id": <id>, "quote_text": "<exact quote>"}]}]}.
If no amount is found, respond with the exact text ` + "`<<ANSWER_NOT_FOUND>>`" + ` and nothing else.`
	case QuestionTypeSelect:
		return `# OUTPUT FORMAT

Respond with a JSON object: {"items": [{"option_id": "<id>", "option_value": "<exact option text>", "confidence": <0-1>, "citations": [{"document_id": <id>, "quote_text": "<exact quote>"}]}]}.
Select only from the options listed below. If none apply, respond with the exact text ` + "`<<ANSWER_NOT_FOUND>>`" + ` and nothing else.`
	default:
		return `# OUTPUT FORMAT

Respond with a JSON object: {"items": [{"value": "<answer text>", "confidence": <0-1>, "citations": [{"document_id": <id>, "quote_text": "<exact quote>"}]}]}.
If the answer is not present in the documents, respond with the exact text ` + "`<<ANSWER_NOT_FOUND>>`" + ` and nothing else.`
	}
}

// answerCountConstraint renders the deterministic phrasing SPEC_FULL.md
// requires: min==max==1 -> "exactly 1"; min==max (>1) -> "exactly N";
// max==nil -> "at least N" ("at least 1" when min==1); else "between N and M".
func answerCountConstraint(minAnswers int, maxAnswers *int) string {
	if maxAnswers == nil {
		if minAnswers == 1 {
			return "Provide at least 1 answer (or more if found)."
		}
		return fmt.Sprintf("Provide at least %d answers (or more if found).", minAnswers)
	}
	if minAnswers == *maxAnswers {
		if minAnswers == 1 {
			return "Provide exactly 1 answer."
		}
		return fmt.Sprintf("Provide exactly %d answers.", minAnswers)
	}
	return fmt.Sprintf("Provide between %d and %d answers.", minAnswers, *maxAnswers)
}

func taskContextSection(req PromptRequest, withToolIDs bool) string {
	var docRefs []string
	var docIDStrs []string
	for _, id := range req.DocumentIDs {
		docRefs = append(docRefs, fmt.Sprintf("[[document:%d]]", id))
		docIDStrs = append(docIDStrs, fmt.Sprintf("%d", id))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# YOUR TASK\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", req.QuestionText)
	fmt.Fprintf(&b, "**Available Documents:** %s", strings.Join(docRefs, ", "))
	if withToolIDs {
		fmt.Fprintf(&b, "\n\n**Document IDs for MCP tools:** %s", strings.Join(docIDStrs, ", "))
	}

	if req.QuestionType == QuestionTypeSelect && len(req.Options) > 0 {
		b.WriteString("\n\n**Available Options (SELECT question):**\n")
		for _, opt := range req.Options {
			fmt.Fprintf(&b, "  - %s\n", opt)
		}
		b.WriteString("\nSelect ONLY from these exact option texts.")
	}

	minAnswers := req.MinAnswers
	if minAnswers == 0 {
		minAnswers = 1
	}
	b.WriteString("\n\n")
	b.WriteString(answerCountConstraint(minAnswers, req.MaxAnswers))

	return b.String()
}

const closingInstruction = `Begin by using the MCP tools to discover and read relevant chunks, then provide your answer in the required JSON format with proper [[cite:N]] citations and [[document:ID]] markers.`

// AgentPrompt composes the full mega-prompt for the agentic QA path: four
// sections joined by "---", followed by a closing instruction reiterating
// the citation marker convention.
func AgentPrompt(req PromptRequest) string {
	sections := []string{
		orchestrationSection,
		analysisSection(req.MatrixType),
		outputFormatSection(req.QuestionType),
		taskContextSection(req, true),
	}
	return strings.Join(sections, "\n\n---\n\n") + "\n\n" + closingInstruction
}

// LocalPrompt composes the system prompt for the local (non-agentic) QA
// path: the same analysis/output/task sections as AgentPrompt, minus the
// tool-use orchestration section — the local path is answered in one shot
// against a hybrid-search-composed context, so it has no MCP tools to
// instruct the model about.
func LocalPrompt(req PromptRequest) string {
	sections := []string{
		analysisSection(req.MatrixType),
		outputFormatSection(req.QuestionType),
		taskContextSection(req, false),
	}
	return strings.Join(sections, "\n\n---\n\n")
}
