package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"github.com/google/uuid"
)

// ContinuationTrigger signals "resume this job" after a time-budget
// checkpoint. The contract is persist-checkpoint, then signal, then return;
// the process may fully exit before the signal is acted on.
type ContinuationTrigger interface {
	Trigger(ctx context.Context, msg config.ContinuationMessage)
}

// NewContinuationMessage stamps a unique invocation id used by the receiving
// handler's idempotency key.
func NewContinuationMessage(tenantId, jobType, jobId, correlationId string) config.ContinuationMessage {
	return config.ContinuationMessage{
		TenantId:      tenantId,
		JobType:       jobType,
		JobId:         jobId,
		Invocation:    uuid.NewString(),
		CorrelationId: correlationId,
	}
}

// HTTPContinuer fires a POST at this service's own continuation endpoint,
// authenticated with the shared secret. Fire-and-forget: delivery failures
// are logged and left for the operator (or the Pub/Sub transport) to retry.
type HTTPContinuer struct {
	BaseURL string
	Secret  string
	Client  *http.Client
}

func (h *HTTPContinuer) Trigger(ctx context.Context, msg config.ContinuationMessage) {
	go func() {
		body, err := json.Marshal(msg)
		if err != nil {
			config.LogError(config.GetLogger(), "continuation.go", "Trigger", "marshal message", msg.JobId, err)
			return
		}

		path := "/internal/jobs/" + msg.JobId + "/continue"
		if msg.JobType == "patch" {
			path = "/internal/patches/" + msg.JobId + "/run"
		}

		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, h.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			config.LogError(config.GetLogger(), "continuation.go", "Trigger", "build request", msg.JobId, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Continuation-Secret", h.Secret)

		client := h.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			config.LogError(config.GetLogger(), "continuation.go", "Trigger", "post continuation", msg.JobId, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			config.LogError(config.GetLogger(), "continuation.go", "Trigger", "continuation response",
				msg.JobId, fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
	}()
}

// PubSubContinuer publishes the continuation message to the configured
// topic; the push subscription delivers it back to the same endpoints.
type PubSubContinuer struct{}

func (PubSubContinuer) Trigger(ctx context.Context, msg config.ContinuationMessage) {
	go func() {
		if _, err := config.PublishContinuation(context.Background(), msg); err != nil {
			config.LogError(config.GetLogger(), "continuation.go", "Trigger", "publish continuation", msg.JobId, err)
		}
	}()
}

// NoopContinuer is used by the CLIs, which loop Run() themselves.
type NoopContinuer struct{}

func (NoopContinuer) Trigger(ctx context.Context, msg config.ContinuationMessage) {}

// NewContinuerFromEnv prefers the Pub/Sub transport when a topic is
// configured, falling back to the HTTP self-call.
func NewContinuerFromEnv() ContinuationTrigger {
	if config.ContinuationTopicConfigured() {
		return PubSubContinuer{}
	}
	base := config.ContinuationBaseURL()
	secret := config.ContinuationSecret()
	if base == "" || secret == "" {
		return NoopContinuer{}
	}
	return &HTTPContinuer{BaseURL: base, Secret: secret}
}
