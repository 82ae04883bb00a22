// Package client is the device agent's HTTP client for the backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tablecast/internal/capture"
	"tablecast/internal/models"
)

// ErrUnauthorized is returned when the device token is rejected.
var ErrUnauthorized = errors.New("device token rejected")

// ErrNotFound is returned when the addressed resource does not exist.
var ErrNotFound = errors.New("not found")

// Client talks to the backend on behalf of one table's device. It
// implements the capture pipeline's Pinger and Uploader.
type Client struct {
	baseURL     string
	deviceToken string
	tableID     string
	http        *http.Client
}

// New creates a Client for the given table.
func New(baseURL, deviceToken, tableID string) *Client {
	return &Client{
		baseURL:     baseURL,
		deviceToken: deviceToken,
		tableID:     tableID,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping measures a round trip to the backend. Used as the connection
// monitor's probe.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

// Upload sends one closed segment to the backend.
func (c *Client) Upload(ctx context.Context, seg capture.Segment) error {
	url := fmt.Sprintf("%s/v1/tables/%s/segments", c.baseURL, c.tableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(seg.Data))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Segment-Seq", strconv.FormatUint(seg.Seq, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	return statusError(resp.StatusCode, http.StatusCreated, "upload segment")
}

// PollNudges fetches the nudges currently visible to this table. The
// backend marks each returned nudge Delivered as part of the read.
func (c *Client) PollNudges(ctx context.Context) ([]*models.Nudge, error) {
	url := fmt.Sprintf("%s/v1/tables/%s/nudges", c.baseURL, c.tableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp.StatusCode, http.StatusOK, "poll nudges"); err != nil {
		return nil, err
	}
	var out struct {
		Nudges []*models.Nudge `json:"nudges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode nudges: %w", err)
	}
	return out.Nudges, nil
}

// AckNudge acknowledges one nudge on behalf of the table's participants.
func (c *Client) AckNudge(ctx context.Context, nudgeID string) error {
	url := fmt.Sprintf("%s/v1/nudges/%s/ack", c.baseURL, nudgeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	return statusError(resp.StatusCode, http.StatusOK, "ack nudge")
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.deviceToken)
}

func statusError(got, want int, op string) error {
	switch {
	case got == want:
		return nil
	case got == http.StatusUnauthorized || got == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case got == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: unexpected status %d", op, got)
	}
}

// drainAndClose consumes the body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
