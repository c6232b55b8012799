// Package assets fetches study assets (dataset CSVs, instruction and
// alt-text markdown) from the study asset server.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chartchat/logx"
	"chartchat/model"
)

// FetchError reports a failed asset fetch: either the request itself failed
// or the server answered with a non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset fetch %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("asset fetch %s failed: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches plain-text assets from a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an asset client. Asset fetches happen inside a turn, so
// every request carries a bounded timeout rather than hanging the turn.
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

// DatasetCSV fetches the CSV backing the chart, keyed by chart type and
// dataset variant.
func (c *Client) DatasetCSV(ctx context.Context, params model.StudyParams) (string, error) {
	url := fmt.Sprintf("%s/data/%s_%s.csv", c.baseURL, params.ChartType, params.Dataset)
	return c.fetchText(ctx, url)
}

// Instructions fetches the instruction markdown keyed by chart type and
// modality.
func (c *Client) Instructions(ctx context.Context, params model.StudyParams) (string, error) {
	url := fmt.Sprintf("%s/instructions/%s_instructions_%s.md", c.baseURL, params.ChartType, params.Modality)
	return c.fetchText(ctx, url)
}

// AltText fetches the alt-text markdown keyed by chart type and dataset.
func (c *Client) AltText(ctx context.Context, params model.StudyParams) (string, error) {
	url := fmt.Sprintf("%s/alt-text/%s_%s.md", c.baseURL, params.ChartType, params.Dataset)
	return c.fetchText(ctx, url)
}

// ViewerContent fetches whatever the companion viewer shows for this session:
// instructions or alt-text, depending on the content type.
func (c *Client) ViewerContent(ctx context.Context, params model.StudyParams) (string, error) {
	if params.ContentType == model.ContentAltText {
		return c.AltText(ctx, params)
	}
	return c.Instructions(ctx, params)
}

func (c *Client) fetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logx.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("asset fetch failed")
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	return string(body), nil
}
