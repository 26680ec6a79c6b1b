package recordclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"classroll/internal/apperr"
)

// Entity names on the record platform.
const (
	EntityAttendance   = "app_Attendance"
	EntityClass        = "app_Class"
	EntityUser         = "app_User"
	EntityNotification = "app_Notification"
)

// Condition narrows a fetch. Operator is one of the platform operators such
// as "EqualTo" or "GreaterThanOrEqualTo".
type Condition struct {
	FieldName string   `json:"FieldName"`
	Operator  string   `json:"Operator"`
	Values    []string `json:"Values"`
}

// Eq is shorthand for an EqualTo condition.
func Eq(field string, value any) Condition {
	return Condition{FieldName: field, Operator: "EqualTo", Values: []string{fmt.Sprint(value)}}
}

// FieldError is a per-field failure reported for one record.
type FieldError struct {
	FieldLabel string `json:"fieldLabel"`
	Message    string `json:"message"`
}

type result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []FieldError    `json:"errors"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Results []result        `json:"results"`
}

// Client calls the hosted record platform.
type Client struct {
	BaseURL   string
	ProjectID string
	PublicKey string
	HTTP      *http.Client
}

// New creates a client with a request timeout.
func New(baseURL, projectID, publicKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		PublicKey: publicKey,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch returns every record of entity matching all conditions.
func (c *Client) Fetch(ctx context.Context, entity string, where ...Condition) ([]json.RawMessage, error) {
	payload := map[string]any{}
	if len(where) > 0 {
		payload["where"] = where
	}
	env, err := c.do(ctx, http.MethodPost, "/records/"+url.PathEscape(entity)+"/fetch", payload)
	if err != nil {
		return nil, err
	}
	out := []json.RawMessage{}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, apperr.Unavailable("fetch "+entity, fmt.Errorf("decode data: %w", err))
	}
	return out, nil
}

// GetByID returns one record or apperr.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, entity string, id int) (json.RawMessage, error) {
	env, err := c.do(ctx, http.MethodGet, "/records/"+url.PathEscape(entity)+"/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, apperr.ErrNotFound
	}
	return env.Data, nil
}

// Create inserts one record and returns it as stored by the platform.
func (c *Client) Create(ctx context.Context, entity string, record any) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPost, entity, record)
}

// Update writes the fields present in record over the stored record. The
// record must carry its Id. Callers send complete records so nothing depends
// on whether the platform merges or replaces.
func (c *Client) Update(ctx context.Context, entity string, record any) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPut, entity, record)
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, entity string, id int) error {
	env, err := c.do(ctx, http.MethodDelete, "/records/"+url.PathEscape(entity), map[string]any{"RecordIds": []int{id}})
	if err != nil {
		return err
	}
	_, err = firstResult(entity, env)
	return err
}

// Health checks if the platform is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.sign(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Unavailable("record platform health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperr.Unavailable("record platform health", fmt.Errorf("status %s", resp.Status))
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, entity string, record any) (json.RawMessage, error) {
	env, err := c.do(ctx, method, "/records/"+url.PathEscape(entity), map[string]any{"records": []any{record}})
	if err != nil {
		return nil, err
	}
	return firstResult(entity, env)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.sign(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Unavailable("record platform request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, apperr.Unavailable("record platform request", fmt.Errorf("status %s: %s", resp.Status, string(bodyBytes)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperr.Unavailable("record platform request", fmt.Errorf("decode response: %w", err))
	}
	if !env.Success {
		return nil, apperr.Unavailable("record platform request", fmt.Errorf("platform error: %s", env.Message))
	}
	return &env, nil
}

func (c *Client) sign(req *http.Request) {
	req.Header.Set("X-Project-Id", c.ProjectID)
	req.Header.Set("X-Public-Key", c.PublicKey)
}

// firstResult unwraps the single per-record result of a write. Field errors
// become a ValidationError.
func firstResult(entity string, env *envelope) (json.RawMessage, error) {
	if len(env.Results) == 0 {
		return env.Data, nil
	}
	r := env.Results[0]
	if r.Success {
		return r.Data, nil
	}
	if len(r.Errors) > 0 {
		flds := make([]apperr.FieldError, 0, len(r.Errors))
		for _, e := range r.Errors {
			flds = append(flds, apperr.FieldError{Field: e.FieldLabel, Error: e.Message})
		}
		return nil, apperr.NewValidationError(flds...)
	}
	return nil, apperr.Unavailable("write "+entity, fmt.Errorf("platform error: %s", r.Message))
}
