// Package target writes migrated entities into the target engine over its
// REST API and carries out compensating actions against it.
package target

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/camunda-community-hub/c7-data-migrator/internal/conf"
	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/httpclient"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
)

// resourcePaths maps entity types to their REST resource paths.
var resourcePaths = map[entities.EntityType]string{
	entities.EntityProcessDefinition:      "process-definitions",
	entities.EntityProcessInstance:        "process-instances",
	entities.EntityVariable:               "variables",
	entities.EntityUserTask:               "user-tasks",
	entities.EntityIncident:               "incidents",
	entities.EntityDecisionDefinition:     "decision-definitions",
	entities.EntityDecisionInstance:       "decision-instances",
	entities.EntityHistoryProcessInstance: "history/process-instances",
}

// createResponse is the target engine's reply to a create call. The key is
// opaque; it is stored in the ledger verbatim.
type createResponse struct {
	Key string `json:"key"`
}

// Client talks to the target engine. It satisfies the orchestrator's
// TargetClient interface.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a target engine client from the configured base URL and
// auth token.
func NewClient(settings *conf.TargetSettings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := httpclient.DefaultConfig()
	if settings.Timeout > 0 {
		cfg.DefaultTimeout = settings.Timeout
	}
	hc := httpclient.New(&cfg)

	if settings.AuthToken != "" {
		token := "Bearer " + settings.AuthToken
		hc.SetBeforeRequestHook(func(r *http.Request) {
			r.Header.Set("Authorization", token)
		})
	}

	return &Client{
		http:    hc,
		baseURL: settings.BaseURL,
		logger:  logger,
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.Close()
}

// Create posts the record to the target engine and returns the assigned key.
func (c *Client) Create(ctx context.Context, record *migrator.TargetRecord) (string, error) {
	url, err := c.resourceURL(record.EntityType)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Post(ctx, url, "application/json", record.Payload)
	if err != nil {
		return "", errors.New(err).
			Component("target").
			Category(errors.CategoryTargetClient).
			Context("entity_type", string(record.EntityType)).
			Build()
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError(resp, "create", string(record.EntityType))
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Newf("failed to decode create response: %v", err).
			Component("target").
			Category(errors.CategoryTargetClient).
			Build()
	}
	if created.Key == "" {
		return "", errors.Newf("target engine returned an empty key").
			Component("target").
			Category(errors.CategoryTargetClient).
			Context("entity_type", string(record.EntityType)).
			Build()
	}

	return created.Key, nil
}

// Cancel requests cancellation of a created target object. Cancelling an
// already cancelled or unknown object is not an error, so compensation can
// be retried safely.
func (c *Client) Cancel(ctx context.Context, entityType entities.EntityType, targetKey string) error {
	url, err := c.resourceURL(entityType)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(ctx, fmt.Sprintf("%s/%s/cancellation", url, targetKey), "application/json", nil)
	if err != nil {
		return errors.New(err).
			Component("target").
			Category(errors.CategoryTargetClient).
			Context("target_key", targetKey).
			Build()
	}
	defer drainAndClose(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusConflict:
		return nil
	default:
		return c.statusError(resp, "cancel", string(entityType))
	}
}

// Delete removes a created target object. Unknown keys are not an error.
func (c *Client) Delete(ctx context.Context, entityType entities.EntityType, targetKey string) error {
	url, err := c.resourceURL(entityType)
	if err != nil {
		return err
	}

	resp, err := c.http.Delete(ctx, fmt.Sprintf("%s/%s", url, targetKey))
	if err != nil {
		return errors.New(err).
			Component("target").
			Category(errors.CategoryTargetClient).
			Context("target_key", targetKey).
			Build()
	}
	defer drainAndClose(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return c.statusError(resp, "delete", string(entityType))
	}
}

func (c *Client) resourceURL(entityType entities.EntityType) (string, error) {
	path, ok := resourcePaths[entityType]
	if !ok {
		return "", fmt.Errorf("no target resource path for entity type %q", entityType)
	}
	return fmt.Sprintf("%s/v1/%s", c.baseURL, path), nil
}

func (c *Client) statusError(resp *http.Response, operation, entityType string) error {
	// Bounded read keeps a misbehaving server from ballooning the error.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return errors.Newf("target engine %s failed with status %d: %s", operation, resp.StatusCode, string(body)).
		Component("target").
		Category(errors.CategoryTargetClient).
		Context("entity_type", entityType).
		Context("status", resp.StatusCode).
		Build()
}

// drainAndClose consumes the remaining body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
