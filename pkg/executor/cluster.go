package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ClusterAPI is the narrow surface a cluster orchestrator client must
// satisfy. No concrete cluster-orchestrator Go SDK (e.g. k8s.io/client-go)
// appears anywhere in the retrieved example pack, so the cluster backend is
// written against this interface instead of a vendored client — see
// DESIGN.md for the justification. A real client substitutes here without
// touching ClusterBackend.
type ClusterAPI interface {
	SubmitJob(ctx context.Context, manifest JobManifest) (jobName string, err error)
	JobStatus(ctx context.Context, jobName string) (ClusterJobStatus, error)
	DeleteJob(ctx context.Context, jobName string) error
}

// JobManifest is the declarative job description submitted to the cluster.
type JobManifest struct {
	Name         string                 `json:"name"`
	Template     string                 `json:"template"`
	Image        string                 `json:"image"`
	Env          map[string]string      `json:"env"`
	TemplateVars map[string]interface{} `json:"template_vars"`
}

// ClusterJobStatus is the cluster API's reported job status counters.
type ClusterJobStatus struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Reason    string `json:"reason"`
}

// httpClusterAPI is a generic HTTP+JSON ClusterAPI client: POST to submit,
// GET to poll status, DELETE with background propagation to remove.
type httpClusterAPI struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClusterAPI builds a ClusterAPI client against a generic
// HTTP+JSON cluster control-plane API at baseURL.
func NewHTTPClusterAPI(baseURL string) ClusterAPI {
	return &httpClusterAPI{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *httpClusterAPI) SubmitJob(ctx context.Context, manifest JobManifest) (string, error) {
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cluster API rejected submission (status %d): %s", resp.StatusCode, body)
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	return out.Name, nil
}

func (c *httpClusterAPI) JobStatus(ctx context.Context, jobName string) (ClusterJobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobName, nil)
	if err != nil {
		return ClusterJobStatus{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return ClusterJobStatus{}, fmt.Errorf("get job status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ClusterJobStatus{Failed: 1, Reason: "not found"}, nil
	}

	var status ClusterJobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return ClusterJobStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

func (c *httpClusterAPI) DeleteJob(ctx context.Context, jobName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/jobs/"+jobName+"?propagation=Background", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("cluster API rejected deletion (status %d)", resp.StatusCode)
	}
	return nil
}

// ClusterBackend implements Backend by rendering JobSpec into a JobManifest
// and submitting it through ClusterAPI.
type ClusterBackend struct {
	api ClusterAPI
}

// NewClusterBackend builds a ClusterBackend over api.
func NewClusterBackend(api ClusterAPI) *ClusterBackend {
	return &ClusterBackend{api: api}
}

func (b *ClusterBackend) Launch(ctx context.Context, spec JobSpec) (ExecutionInfo, error) {
	manifest := JobManifest{
		Name:         spec.ContainerName,
		Template:     spec.TemplateName,
		Image:        spec.Image(),
		Env:          spec.EnvVars,
		TemplateVars: spec.TemplateVars,
	}
	name, err := b.api.SubmitJob(ctx, manifest)
	if err != nil {
		return ExecutionInfo{}, fmt.Errorf("submit cluster job: %w", err)
	}
	return ExecutionInfo{Mode: "cluster", ID: name, Name: name}, nil
}

func (b *ClusterBackend) CheckStatus(ctx context.Context, info ExecutionInfo) (StatusResult, error) {
	status, err := b.api.JobStatus(ctx, info.ID)
	if err != nil {
		return StatusResult{}, fmt.Errorf("cluster job status: %w", err)
	}
	switch {
	case status.Succeeded > 0:
		return StatusResult{State: JobStateCompleted}, nil
	case status.Failed > 0:
		return StatusResult{State: JobStateFailed, Reason: status.Reason}, nil
	default:
		return StatusResult{State: JobStateRunning}, nil
	}
}

func (b *ClusterBackend) Cleanup(ctx context.Context, info ExecutionInfo) {
	if err := b.api.DeleteJob(ctx, info.ID); err != nil {
		slog.Error("cluster job cleanup failed", "job_name", info.ID, "error", err)
	}
}
