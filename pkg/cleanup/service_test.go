package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/corpusforge/platform/pkg/config"
	testdb "github.com/corpusforge/platform/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		WorkflowExecutionRetentionDays: 90,
		CredentialTTL:                  1 * time.Hour,
		SweepInterval:                  1 * time.Hour,
	}
}

func TestService_SoftDeletesOldCompletedExecutions(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	workflow, err := client.Workflow.Create().
		SetCompanyID(company.ID).
		SetName("quarterly-report").
		SetWorkspaceID(1).
		SetOutputType("markdown").
		Save(ctx)
	require.NoError(t, err)

	exec, err := client.WorkflowExecution.Create().
		SetWorkflowID(workflow.ID).
		SetCompanyID(company.ID).
		SetStartedAt(time.Now().Add(-200 * 24 * time.Hour)).
		SetCompletedAt(time.Now().Add(-180 * 24 * time.Hour)).
		SetStatus("completed").
		Save(ctx)
	require.NoError(t, err)

	svc := NewService(testRetentionConfig(), client.Client)
	svc.runAll(ctx)

	updated, err := client.WorkflowExecution.Get(ctx, exec.ID)
	require.NoError(t, err)
	assert.True(t, updated.Deleted)
}

func TestService_PreservesRecentExecutions(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	workflow, err := client.Workflow.Create().
		SetCompanyID(company.ID).
		SetName("quarterly-report").
		SetWorkspaceID(1).
		SetOutputType("markdown").
		Save(ctx)
	require.NoError(t, err)

	exec, err := client.WorkflowExecution.Create().
		SetWorkflowID(workflow.ID).
		SetCompanyID(company.ID).
		SetStartedAt(time.Now().Add(-2 * time.Hour)).
		SetCompletedAt(time.Now()).
		SetStatus("completed").
		Save(ctx)
	require.NoError(t, err)

	svc := NewService(testRetentionConfig(), client.Client)
	svc.runAll(ctx)

	updated, err := client.WorkflowExecution.Get(ctx, exec.ID)
	require.NoError(t, err)
	assert.False(t, updated.Deleted)
}

func TestService_RevokesExpiredCredentials(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)

	old, err := client.ServiceAccount.Create().
		SetName("job-old").
		SetCompanyID(company.ID).
		SetAPIKeyHash("deadbeef").
		SetCreatedAt(time.Now().Add(-48 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)
	require.True(t, old.CreatedAt.Before(time.Now().Add(-47*time.Hour)))

	fresh, err := client.ServiceAccount.Create().
		SetName("job-fresh").
		SetCompanyID(company.ID).
		SetAPIKeyHash("cafef00d").
		Save(ctx)
	require.NoError(t, err)

	cfg := testRetentionConfig()
	cfg.CredentialTTL = 1 * time.Hour
	svc := NewService(cfg, client.Client)
	svc.runAll(ctx)

	oldUpdated, err := client.ServiceAccount.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, oldUpdated.Deleted)
	assert.False(t, oldUpdated.IsActive)

	freshUpdated, err := client.ServiceAccount.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, freshUpdated.Deleted)
}
