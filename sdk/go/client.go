package recruitlinesdk

import (
	"bytes"
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

// Client is a minimal Recruitline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Candidate represents the API candidate model (partial).
type Candidate struct {
	ID          string    `json:"id"`
	OpeningID   string    `json:"opening_id,omitempty"`
	FormTitle   string    `json:"form_title"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Stage       string    `json:"stage"`
	Status      string    `json:"status,omitempty"`
	Disposition string    `json:"disposition"`
	Skills      []string  `json:"skills,omitempty"`
	Version     int       `json:"version"`
	AppliedAt   time.Time `json:"applied_at"`
}

// CandidatePage is one page of a candidate listing.
type CandidatePage struct {
	Items []Candidate `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Pages int         `json:"pages"`
	Size  int         `json:"size"`
}

// CandidateQuery narrows ListCandidates. Zero values are omitted.
type CandidateQuery struct {
	Search      string
	Stage       string
	Status      string
	Disposition string
	OpeningID   string
	Page        int
	PageSize    int
}

func (q CandidateQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("search", q.Search)
	set("stage", q.Stage)
	set("status", q.Status)
	set("disposition", q.Disposition)
	set("opening_id", q.OpeningID)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// Wave is one application window of an opening.
type Wave struct {
	Number   int        `json:"wave_number"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// WaveGroup is the candidates that applied during a wave.
type WaveGroup struct {
	Wave       Wave        `json:"wave"`
	Candidates []Candidate `json:"candidates"`
	Count      int         `json:"count"`
}

// Feedback is the message sent with a decision.
type Feedback struct {
	TemplateID string `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

// Decision is the outcome of approving or rejecting one candidate.
type Decision struct {
	Candidate Candidate `json:"candidate"`
	Deleted   bool      `json:"deleted"`
}

// BatchProgress reports where a bulk decision stands.
type BatchProgress struct {
	BatchID   string `json:"batch_id"`
	State     string `json:"state"`
	Done      bool   `json:"done"`
	Remaining int    `json:"remaining"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// Batch is the review state of a bulk decision.
type Batch struct {
	Progress  BatchProgress `json:"progress"`
	Action    string        `json:"action"`
	Candidate *Candidate    `json:"candidate,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// ListCandidates returns one page of candidates.
func (c *Client) ListCandidates(ctx context.Context, q CandidateQuery) (CandidatePage, error) {
	endpoint := "candidates"
	if v := q.values(); len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	var resp CandidatePage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetCandidate fetches a candidate by id.
func (c *Client) GetCandidate(ctx context.Context, id string) (Candidate, error) {
	var resp Candidate
	err := c.do(ctx, http.MethodGet, "candidates/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetStage moves a candidate. applied is false when the candidate is unknown.
func (c *Client) SetStage(ctx context.Context, id, stage string, expectedVersion int) (cand Candidate, applied bool, err error) {
	var resp struct {
		Applied   bool       `json:"applied"`
		Candidate *Candidate `json:"candidate"`
	}
	body := map[string]any{"kind": "set_stage", "stage": stage, "expected_version": expectedVersion}
	if err := c.do(ctx, http.MethodPost, "candidates/"+url.PathEscape(id)+"/transition", body, &resp); err != nil {
		return Candidate{}, false, err
	}
	if resp.Candidate != nil {
		cand = *resp.Candidate
	}
	return cand, resp.Applied, nil
}

// Decide approves or rejects one candidate. Rejections need confirm.
func (c *Client) Decide(ctx context.Context, id, action string, fb Feedback, confirm bool) (Decision, error) {
	body := map[string]any{"action": action, "feedback": fb, "confirm": confirm}
	var resp Decision
	err := c.do(ctx, http.MethodPost, "candidates/"+url.PathEscape(id)+"/decision", body, &resp)
	return resp, err
}

// Waves returns the candidates of an opening grouped by wave.
func (c *Client) Waves(ctx context.Context, openingID, search string) ([]WaveGroup, error) {
	endpoint := "openings/" + url.PathEscape(openingID) + "/waves"
	if search != "" {
		endpoint += "?search=" + url.QueryEscape(search)
	}
	var resp []WaveGroup
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartBatch begins a bulk decision over ids.
func (c *Client) StartBatch(ctx context.Context, action string, ids []string, confirm bool) (Batch, error) {
	body := map[string]any{"action": action, "ids": ids, "confirm": confirm}
	var resp Batch
	err := c.do(ctx, http.MethodPost, "batches", body, &resp)
	return resp, err
}

// SubmitBatch sends fb to the current candidate of the batch.
func (c *Client) SubmitBatch(ctx context.Context, batchID string, fb Feedback) (Batch, error) {
	var resp Batch
	err := c.do(ctx, http.MethodPost, "batches/"+url.PathEscape(batchID)+"/submit", fb, &resp)
	return resp, err
}

// CancelBatch stops a batch without touching the remaining candidates.
func (c *Client) CancelBatch(ctx context.Context, batchID string) (Batch, error) {
	var resp Batch
	err := c.do(ctx, http.MethodPost, "batches/"+url.PathEscape(batchID)+"/cancel", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
