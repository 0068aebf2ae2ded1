package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// ContinuationMessage is the payload used to resume a checkpointed job.
// It is transport-agnostic: the same shape travels over the HTTP
// continuation endpoint and over the optional Pub/Sub topic.
type ContinuationMessage struct {
	TenantId      string `json:"tenant_id"`
	JobType       string `json:"job_type"` // "generation" | "patch"
	JobId         string `json:"job_id"`
	Invocation    string `json:"invocation"` // unique per continuation hop, for idempotency
	CorrelationId string `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}

	pubsubClientMu.Lock()
	if pubsubClient == nil {
		pubsubClient = c
	} else {
		// Another goroutine won the race; close ours.
		_ = c.Close()
	}
	c2 := pubsubClient
	pubsubClientMu.Unlock()

	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return c2, nil
}

// ContinuationTopicConfigured reports whether Pub/Sub continuation transport
// is enabled. When false, jobs continue via the HTTP endpoint instead.
func ContinuationTopicConfigured() bool {
	return os.Getenv("CONTINUATION_PUBSUB_TOPIC") != ""
}

// PublishContinuation publishes a continuation message and returns the
// Pub/Sub server-assigned message ID.
func PublishContinuation(ctx context.Context, msg ContinuationMessage) (string, error) {
	topicName := os.Getenv("CONTINUATION_PUBSUB_TOPIC")
	if topicName == "" {
		return "", errors.New("CONTINUATION_PUBSUB_TOPIC is required")
	}

	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	pubCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	t := client.Topic(topicName)
	result := t.Publish(pubCtx, &pubsub.Message{
		Data: msgJSON,
	})

	id, err := result.Get(pubCtx)
	if err != nil {
		return "", fmt.Errorf("publish continuation for job %s: %w", msg.JobId, err)
	}
	return id, nil
}
