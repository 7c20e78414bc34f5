package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// AllSubsystems addresses every logger of the silo in SetLogLevel.
const AllSubsystems = "*"

// Client reaches the log controls a silo serves next to its health probes.
type Client struct {
	base url.URL
	http *http.Client
}

// NewClient targets the health listener of a silo at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		base: url.URL{Scheme: "http", Host: addr, Path: Prefix},
		http: http.DefaultClient,
	}
}

// ListLogLevels reports the current level of every logger in the silo.
func (c *Client) ListLogLevels(ctx context.Context) (*ListLogLevelsResponse, error) {
	var out ListLogLevelsResponse
	if err := c.do(ctx, http.MethodGet, "/log/level", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLogSubsystems returns the logger names known to the silo, sorted.
func (c *Client) ListLogSubsystems(ctx context.Context) (*ListLogSubsystemsResponse, error) {
	var out ListLogSubsystemsResponse
	if err := c.do(ctx, http.MethodGet, "/log/subsystems", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLogLevel changes one logger of the running silo, or all of them when
// subsystem is AllSubsystems. The change lasts until the process exits.
func (c *Client) SetLogLevel(ctx context.Context, subsystem, level string) error {
	body, err := json.Marshal(SetLogLevelRequest{Subsystem: subsystem, Level: level})
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPost, "/log/level", body, nil); err != nil {
		return fmt.Errorf("setting level of %s: %w", subsystem, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	u := c.base
	u.Path += path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, u.Path, res.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
