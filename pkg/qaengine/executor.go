// Package qaengine answers one MatrixCell's question against its document by
// composing a prompt from the cell's entity refs, calling the LLM, and
// grounding the answer back to the source chunks before persisting an
// AnswerSet.
package qaengine

import (
	"context"
	"fmt"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/cellentityref"
	"github.com/corpusforge/platform/ent/chunk"
	"github.com/corpusforge/platform/ent/entitysetmember"
	"github.com/corpusforge/platform/ent/qajob"
	"github.com/corpusforge/platform/ent/usageevent"
	"github.com/corpusforge/platform/pkg/billing"
	"github.com/corpusforge/platform/pkg/jobqueue"
	"github.com/corpusforge/platform/pkg/objectstore"
	"github.com/corpusforge/platform/pkg/qarouter"
)

// LLMClient is the subset of llm.Client the executor needs, abstracted so
// tests can substitute a stub without standing up an HTTP service.
type LLMClient interface {
	Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Executor implements jobqueue.JobExecutor for the QA cell domain.
type Executor struct {
	client  *ent.Client
	store   objectstore.Store
	llm     LLMClient
	weights HybridWeights
	quota   *billing.Gate
}

// HybridWeights controls how much the composed context favors keyword vs.
// vector-retrieved chunks, mirrored from config.HybridWeights so the executor
// doesn't need to import the whole config package for one struct.
type HybridWeights struct {
	Keyword float64
	Vector  float64
}

// New builds an Executor. quota gates each execution behind the cell's
// company's agentic-QA allowance before any LLM call is made.
func New(client *ent.Client, store objectstore.Store, llm LLMClient, weights HybridWeights, quota *billing.Gate) *Executor {
	return &Executor{client: client, store: store, llm: llm, weights: weights, quota: quota}
}

var _ jobqueue.JobExecutor = (*Executor)(nil)

// Execute answers the question entity referenced by job's cell against the
// document entity referenced by the same cell, and returns an
// ExecutionResult describing the outcome. It never returns a nil result:
// infrastructure failures (can't load the cell, can't reach the object
// store) are folded into a failed ExecutionResult rather than panicking the
// worker, since jobqueue.Worker treats a non-nil result as authoritative.
func (e *Executor) Execute(ctx context.Context, job *ent.QAJob) *jobqueue.ExecutionResult {
	cell, err := e.client.MatrixCell.Get(ctx, job.MatrixCellID)
	if err != nil {
		return failResult(fmt.Errorf("loading matrix cell %d: %w", job.MatrixCellID, err))
	}

	if e.quota != nil {
		reservation, err := e.quota.Reserve(ctx, cell.CompanyID, usageevent.EventTypeAgenticQa, 1, nil)
		if err != nil {
			return failResult(fmt.Errorf("reserving agentic QA quota: %w", err))
		}
		if !reservation.Allowed {
			return failResult(fmt.Errorf("agentic QA quota exhausted: %s", reservation.Message()))
		}
	}

	refs, err := e.client.CellEntityRef.Query().
		Where(cellentityref.CellID(cell.ID)).
		All(ctx)
	if err != nil {
		return failResult(fmt.Errorf("loading cell entity refs: %w", err))
	}

	var documentID, questionEntityID int
	var question string
	for _, r := range refs {
		switch r.Role {
		case "document":
			documentID = r.EntityID
		case "question":
			questionEntityID = r.EntityID
		}
	}
	if documentID == 0 || questionEntityID == 0 {
		return failResult(fmt.Errorf("cell %d missing document or question ref", cell.ID))
	}

	member, err := e.client.EntitySetMember.Query().
		Where(entitysetmember.EntityID(questionEntityID), entitysetmember.EntityTypeEQ(entitysetmember.EntityTypeQuestion)).
		First(ctx)
	if err != nil {
		return failResult(fmt.Errorf("loading question entity %d: %w", questionEntityID, err))
	}
	if member.Label != nil {
		question = *member.Label
	}
	if question == "" {
		return failResult(fmt.Errorf("question entity %d has no label", questionEntityID))
	}

	chunks, err := e.client.Chunk.Query().
		Where(chunk.DocumentID(documentID), chunk.Deleted(false)).
		Order(ent.Asc(chunk.FieldChunkOrder)).
		All(ctx)
	if err != nil {
		return failResult(fmt.Errorf("loading chunks for document %d: %w", documentID, err))
	}

	passages, err := e.loadChunkText(ctx, chunks)
	if err != nil {
		return failResult(err)
	}

	totalCharCount := 0
	for _, p := range passages {
		totalCharCount += len(p.text)
	}
	decision := qarouter.Route(member.AgentQaRequested, totalCharCount, 0)

	promptReq := qarouter.PromptRequest{
		MatrixType:   qarouter.MatrixTypeStandard,
		QuestionType: qarouter.QuestionTypeText,
		QuestionText: question,
		DocumentIDs:  []int{documentID},
		MinAnswers:   1,
	}
	systemPrompt := qarouter.LocalPrompt(promptReq)
	if decision.UseAgentQA {
		systemPrompt = qarouter.AgentPrompt(promptReq)
	}
	userPrompt := composeContext(passages, e.weights)

	results, overall, err := e.answerWithRetry(ctx, systemPrompt, userPrompt, passages, defaultMaxRetries)
	if err != nil {
		return failResult(err)
	}

	answerSetID, err := e.persistAnswer(ctx, cell.CompanyID, results, overall)
	if err != nil {
		return failResult(fmt.Errorf("persisting answer: %w", err))
	}

	return &jobqueue.ExecutionResult{
		Status:      qajob.StatusCompleted,
		AnswerSetID: &answerSetID,
	}
}

// answerWithRetry calls the LLM, extracts and grounds its response, and —
// if the set-level grounding average falls below minRetryAverageScore and
// retries remain — re-asks once with feedback enumerating the ungrounded
// citations, per SPEC_FULL.md's retry-with-feedback protocol.
func (e *Executor) answerWithRetry(ctx context.Context, systemPrompt, userPrompt string, passages []passage, retriesLeft int) ([]groundedAnswer, float64, error) {
	raw, err := e.llm.Answer(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, 0, fmt.Errorf("llm answer: %w", err)
	}

	jsonText, notFound, err := extractJSON(raw)
	if notFound {
		return nil, 1.0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("extracting answer: %w", err)
	}

	items, err := normalizeItems(jsonText)
	if err != nil {
		return nil, 0, err
	}

	results, overall := groundItems(passages, items)
	if overall < minRetryAverageScore && retriesLeft > 0 {
		feedbackPrompt := userPrompt + "\n\n---\n\n" + retryFeedback(results)
		return e.answerWithRetry(ctx, systemPrompt, feedbackPrompt, passages, retriesLeft-1)
	}
	return results, overall, nil
}

func failResult(err error) *jobqueue.ExecutionResult {
	return &jobqueue.ExecutionResult{
		Status:       qajob.StatusFailed,
		ErrorMessage: err.Error(),
		Err:          err,
	}
}
