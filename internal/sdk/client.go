package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteCallError is returned when the automation process answers a call with
// a non-success error code.
type RemoteCallError struct {
	Opcode      int
	ErrorCode   int
	Description string
}

func (e *RemoteCallError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("remote call %d failed: error_code %d: %s", e.Opcode, e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("remote call %d failed: error_code %d", e.Opcode, e.ErrorCode)
}

// Client is a stateless request/response wrapper around the automation API.
// Every operation is one opcode + payload round trip against POST /api/.
// The client never retries; retry policy belongs to callers.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// NewClient creates a client for the automation API at apiURL.
func NewClient(apiURL string, log *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(apiURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{
		http: httpClient,
		log:  log,
	}
}

// Call sends one opcode + params request and returns the data payload.
// A non-success error_code yields a *RemoteCallError.
func (c *Client) Call(ctx context.Context, opcode int, params map[string]any) (json.RawMessage, error) {
	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["type"] = opcode

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/")
	if err != nil {
		return nil, fmt.Errorf("call opcode %d: %w", opcode, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("call opcode %d: unexpected status %d", opcode, resp.StatusCode())
	}

	var result Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode opcode %d response: %w", opcode, err)
	}

	if result.ErrorCode != SuccessCode {
		c.log.Warn("remote call failed",
			"opcode", opcode, "error_code", result.ErrorCode, "description", result.Description)
		return nil, &RemoteCallError{
			Opcode:      opcode,
			ErrorCode:   result.ErrorCode,
			Description: result.Description,
		}
	}

	return result.Data, nil
}

// callInto performs a Call and unmarshals the data payload into out.
func (c *Client) callInto(ctx context.Context, opcode int, params map[string]any, out any) error {
	data, err := c.Call(ctx, opcode, params)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode opcode %d data: %w", opcode, err)
	}
	return nil
}
