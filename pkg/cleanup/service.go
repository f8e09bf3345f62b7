// Package cleanup provides a background data-retention sweep.
//
// Grounded on the teacher's pkg/cleanup/service.go shape (ticker-driven loop,
// Start/Stop with a cancel func and a done channel) and rewritten against
// this domain's entities: workflow executions age out after a retention
// window, and service-account credentials that outlived their job without
// being explicitly revoked (pkg/credential.Broker.Delete) are force-revoked
// past a TTL.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/serviceaccount"
	"github.com/corpusforge/platform/ent/workflowexecution"
	"github.com/corpusforge/platform/pkg/config"
)

// Service periodically enforces retention policy:
//   - Soft-deletes terminal WorkflowExecution rows past their retention window
//   - Force-revokes ServiceAccount credentials that outlived CredentialTTL
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config *config.RetentionConfig
	client *ent.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new retention service.
func NewService(cfg *config.RetentionConfig, client *ent.Client) *Service {
	return &Service{config: cfg, client: client}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention sweep started",
		"workflow_execution_retention_days", s.config.WorkflowExecutionRetentionDays,
		"credential_ttl", s.config.CredentialTTL,
		"interval", s.config.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention sweep stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.softDeleteOldExecutions(ctx)
	s.revokeExpiredCredentials(ctx)
}

func (s *Service) softDeleteOldExecutions(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.WorkflowExecutionRetentionDays)
	n, err := s.client.WorkflowExecution.Update().
		Where(
			workflowexecution.StatusIn(workflowexecution.StatusCompleted, workflowexecution.StatusFailed),
			workflowexecution.CompletedAtLT(cutoff),
			workflowexecution.Deleted(false),
		).
		SetDeleted(true).
		Save(ctx)
	if err != nil {
		slog.Error("retention: workflow execution sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("retention: soft-deleted old workflow executions", "count", n)
	}
}

func (s *Service) revokeExpiredCredentials(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.CredentialTTL)
	n, err := s.client.ServiceAccount.Update().
		Where(
			serviceaccount.IsActive(true),
			serviceaccount.Deleted(false),
			serviceaccount.CreatedAtLT(cutoff),
		).
		SetIsActive(false).
		SetDeleted(true).
		Save(ctx)
	if err != nil {
		slog.Error("retention: credential sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("retention: revoked expired ephemeral credentials", "count", n)
	}
}
