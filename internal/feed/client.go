package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Source yields the two external feeds a reconciliation run consumes.
type Source interface {
	Departments(ctx context.Context) ([]DepartmentRow, error)
	Roster(ctx context.Context) ([]RosterRow, error)
}

// Client fetches feed rows over HTTP from the upstream information system.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a feed client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Departments fetches the department feed.
func (c *Client) Departments(ctx context.Context) ([]DepartmentRow, error) {
	var rows []DepartmentRow
	if err := c.fetch(ctx, "/departments", &rows); err != nil {
		return nil, fmt.Errorf("feed: departments: %w", err)
	}
	for i := range rows {
		rows[i].DisplayName = SanitizeName(rows[i].DisplayName)
	}
	return rows, nil
}

// Roster fetches the roster feed.
func (c *Client) Roster(ctx context.Context) ([]RosterRow, error) {
	var rows []RosterRow
	if err := c.fetch(ctx, "/roster", &rows); err != nil {
		return nil, fmt.Errorf("feed: roster: %w", err)
	}
	for i := range rows {
		rows[i].DisplayName = SanitizeName(rows[i].DisplayName)
	}
	return rows, nil
}

func (c *Client) fetch(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// SanitizeName normalizes a display name from the upstream system: the SIS
// emits full-width ASCII and mixed composition forms, which would otherwise
// produce divergent group names for the same department.
func SanitizeName(name string) string {
	name = width.Narrow.String(name)
	name = norm.NFC.String(name)
	return strings.TrimSpace(name)
}

var _ Source = (*Client)(nil)
