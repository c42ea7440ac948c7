package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrStatus is returned when the service answers with an unexpected status.
var ErrStatus = errors.New("unexpected status")

// client calls the arena procedures as a given user.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

// query performs GET /api/<procedure>?params and decodes the body into out.
func (c *client) query(ctx context.Context, procedure string, params url.Values, out any) error {
	u := c.base + "/api/" + procedure
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}
	var status int
	return c.doStatus(req, procedure, &status, out)
}

// mutate performs POST /api/<procedure> as userID and decodes the body into out.
func (c *client) mutate(ctx context.Context, procedure string, userID int64, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal: %w", procedure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/"+procedure, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", procedure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))

	var status int
	err = c.doStatus(req, procedure, &status, out)
	return status, err
}

func (c *client) doStatus(req *http.Request, procedure string, status *int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	*status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", procedure, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%s: %w %d: %s", procedure, ErrStatus, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", procedure, err)
	}
	return nil
}

// healthy checks /healthz answers 200.
func (c *client) healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz: %w %d", ErrStatus, resp.StatusCode)
	}
	return nil
}
