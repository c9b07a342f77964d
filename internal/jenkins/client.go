// Package jenkins is a thin client for the build server: submit a
// parameterized job, poll its queue item, fetch a build log. The
// coordinator itself only submits; status and logs serve operators and
// tests.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// Queue item / build states as reported by QueueStatus.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
	StateAborted = "ABORTED"
)

// Client talks to one Jenkins server with API-token basic auth.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// QueueStatus is the state of a submitted job.
type QueueStatus struct {
	State       string
	BuildNumber int64
	BuildURL    string
	Duration    time.Duration
}

// jobURLPath expands "folder/name" into Jenkins' /job/folder/job/name form.
func jobURLPath(jobPath string) string {
	segments := strings.Split(strings.Trim(jobPath, "/"), "/")
	var b strings.Builder
	for _, s := range segments {
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// SubmitJob enqueues one build of jobPath with the given string parameters
// and returns the queue item identifier from the Location header.
func (c *Client) SubmitJob(ctx context.Context, jobPath string, params map[string]string) (int64, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	endpoint := c.baseURL + jobURLPath(jobPath) + "/buildWithParameters"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.username, c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submit job %q: %w", jobPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("submit job %q: HTTP %d: %s", jobPath, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	queueID, err := queueIDFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return 0, fmt.Errorf("submit job %q: %w", jobPath, err)
	}
	return queueID, nil
}

// queueIDFromLocation parses ".../queue/item/<id>/" into <id>.
func queueIDFromLocation(location string) (int64, error) {
	if location == "" {
		return 0, fmt.Errorf("no Location header on queue response")
	}
	trimmed := strings.TrimRight(location, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return 0, fmt.Errorf("malformed queue Location %q", location)
	}
	id, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed queue Location %q: %w", location, err)
	}
	return id, nil
}

type queueItemResponse struct {
	Why        string `json:"why"`
	Cancelled  bool   `json:"cancelled"`
	Executable *struct {
		Number int64  `json:"number"`
		URL    string `json:"url"`
	} `json:"executable"`
}

type buildResponse struct {
	Building bool   `json:"building"`
	Result   string `json:"result"`
	Duration int64  `json:"duration"`
	URL      string `json:"url"`
}

// QueueStatus resolves the current state of a queue item. Items still in
// the queue report "queued"; once a build exists its result decides between
// running and the terminal states.
func (c *Client) QueueStatus(ctx context.Context, queueID int64) (QueueStatus, error) {
	var item queueItemResponse
	itemURL := fmt.Sprintf("%s/queue/item/%d/api/json", c.baseURL, queueID)
	if err := c.getJSON(ctx, itemURL, &item); err != nil {
		return QueueStatus{}, fmt.Errorf("queue item %d: %w", queueID, err)
	}
	if item.Cancelled {
		return QueueStatus{State: StateAborted}, nil
	}
	if item.Executable == nil {
		return QueueStatus{State: StateQueued}, nil
	}

	var build buildResponse
	buildURL := strings.TrimRight(item.Executable.URL, "/") + "/api/json"
	if err := c.getJSON(ctx, buildURL, &build); err != nil {
		return QueueStatus{}, fmt.Errorf("build for queue item %d: %w", queueID, err)
	}
	status := QueueStatus{
		BuildNumber: item.Executable.Number,
		BuildURL:    item.Executable.URL,
		Duration:    time.Duration(build.Duration) * time.Millisecond,
	}
	if build.Building || build.Result == "" {
		status.State = StateRunning
	} else {
		status.State = build.Result
	}
	return status, nil
}

// BuildLog fetches the console text of one build.
func (c *Client) BuildLog(ctx context.Context, jobPath string, buildNumber int64) (string, error) {
	endpoint := fmt.Sprintf("%s%s/%d/consoleText", c.baseURL, jobURLPath(jobPath), buildNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("build log for %s #%d: %w", jobPath, buildNumber, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("build log for %s #%d: HTTP %d", jobPath, buildNumber, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
