package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recruitline/internal/app"
	"recruitline/internal/batch"
	"recruitline/internal/config"
	"recruitline/internal/domain"
	"recruitline/internal/logger"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, mutate func(cfg *config.Config), auth AuthConfig) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Feedback.SendDelay = 0
	if mutate != nil {
		mutate(cfg)
	}
	a, err := app.Open(context.Background(), t.TempDir(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	handler, err := New(Config{Engine: a.Engine, BasePath: "/v0", Auth: auth, Log: logger.Discard()})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			a.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v: %s", err, string(data))
	}
	return env.Error.Code
}

func TestHealthAndDocs(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("list-candidates")) {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
}

func TestCreateAndTransitionCandidate(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/openings", map[string]any{"title": "SRE"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create opening status %d: %s", res.StatusCode, string(data))
	}
	var opening domain.JobOpening
	_ = json.Unmarshal(data, &opening)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates", map[string]any{
		"opening_id": opening.ID,
		"name":       "Radia Perlman",
		"email":      "radia@example.com",
		"applied_at": time.Now().UTC().Format(time.RFC3339),
	}, map[string]string{"X-Actor-Id": "recruiter"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create candidate status %d: %s", res.StatusCode, string(data))
	}
	var c domain.Candidate
	_ = json.Unmarshal(data, &c)
	if c.FormTitle != "SRE" || c.Stage != domain.StageApplied {
		t.Fatalf("unexpected candidate %+v", c)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/transition", map[string]any{
		"kind":             "set_stage",
		"stage":            "cv_review",
		"expected_version": c.Version,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("transition status %d: %s", res.StatusCode, string(data))
	}
	var tr TransitionResponse
	_ = json.Unmarshal(data, &tr)
	if !tr.Applied || tr.Candidate == nil || tr.Candidate.Stage != domain.StageCVReview {
		t.Fatalf("unexpected transition %+v", tr)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/transition", map[string]any{
		"kind":             "take_out",
		"expected_version": c.Version,
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "version_conflict" {
		t.Fatalf("expected version conflict, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/transition", map[string]any{"kind": "archive"}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "confirmation_required" {
		t.Fatalf("expected confirmation required, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/missing/transition", map[string]any{
		"kind":  "set_stage",
		"stage": "cv_review",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unknown id status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &tr)
	if tr.Applied {
		t.Fatalf("expected no-op for unknown candidate")
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/cand-ada/transition", map[string]any{
		"kind":  "set_stage",
		"stage": "hired",
	}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "validation_failed" {
		t.Fatalf("expected validation failure, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/openings", map[string]any{"title": "Backend Engineer"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected duplicate title to fail, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/nobody", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d %s", res.StatusCode, string(data))
	}
}

func TestListCandidatesAndWaves(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates?opening_id=op-backend&page_size=2", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page CandidatePage
	_ = json.Unmarshal(data, &page)
	if page.Total != 3 || len(page.Items) != 2 || page.Pages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openings/op-backend/waves", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("waves status %d: %s", res.StatusCode, string(data))
	}
	var groups []WaveGroupResponse
	_ = json.Unmarshal(data, &groups)
	if len(groups) != 2 || groups[0].Count != 1 || groups[1].Count != 2 {
		t.Fatalf("unexpected wave groups %+v", groups)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openings/op-backend/waves?search=grace", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("filtered waves status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &groups)
	if len(groups) != 2 || groups[0].Count != 0 || groups[1].Count != 1 {
		t.Fatalf("expected empty wave to stay listed, got %+v", groups)
	}
}

func TestDecisionRequiresConfirmForReject(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()
	body := map[string]any{
		"action":   "reject",
		"feedback": map[string]any{"template_id": "tpl-reject", "subject": "Update", "content": "Hi {candidate_name}"},
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/cand-brian/decision", body, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "confirmation_required" {
		t.Fatalf("expected confirmation required, got %d %s", res.StatusCode, string(data))
	}

	body["confirm"] = true
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/cand-brian/decision", body, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decision status %d: %s", res.StatusCode, string(data))
	}
	var dr DecisionResponse
	_ = json.Unmarshal(data, &dr)
	if dr.Deleted || dr.Candidate.Disposition != domain.DispositionRejected || dr.Message.Content != "Hi Brian Kernighan" {
		t.Fatalf("unexpected decision %+v", dr)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/cand-brian/feedback", nil, nil)
	var msgs []domain.FeedbackMessage
	_ = json.Unmarshal(data, &msgs)
	if res.StatusCode != http.StatusOK || len(msgs) != 1 {
		t.Fatalf("expected one feedback message, got %d %s", res.StatusCode, string(data))
	}
}

func TestBatchFlowNotifiesWebhook(t *testing.T) {
	got := make(chan batch.Summary, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Recruitline-Secret") != "s3cret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var p webhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		got <- p.Batch
	}))
	defer hook.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Notify.Webhooks = []config.Webhook{{URL: hook.URL, Secret: "s3cret"}}
	}, AuthConfig{})
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", map[string]any{
		"ids":    []string{"cand-ada", "cand-brian", "cand-ada"},
		"action": "approve",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start batch status %d: %s", res.StatusCode, string(data))
	}
	var br BatchResponse
	_ = json.Unmarshal(data, &br)
	if br.Progress.Total != 2 || br.Candidate == nil || br.Candidate.ID != "cand-ada" || len(br.Offered) != 2 {
		t.Fatalf("unexpected batch %+v", br)
	}
	id := br.Progress.BatchID

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/batches/"+id+"/draft?template_id=tpl-accept", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("draft status %d: %s", res.StatusCode, string(data))
	}
	var draft DraftResponse
	_ = json.Unmarshal(data, &draft)
	if draft.Draft.Subject != "Your application for Senior Backend Engineer" {
		t.Fatalf("unexpected draft %+v", draft.Draft)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches/"+id+"/submit", map[string]any{"subject": "", "content": ""}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected empty feedback to fail, got %d %s", res.StatusCode, string(data))
	}

	for _, want := range []string{"cand-brian", ""} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches/"+id+"/submit", draft.Draft, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
		}
		var step BatchResponse
		if err := json.Unmarshal(data, &step); err != nil {
			t.Fatalf("decode submit: %v", err)
		}
		if step.Progress.Current != want {
			t.Fatalf("expected current %q, got %+v", want, step.Progress)
		}
		br = step
	}
	if !br.Progress.Done || br.Progress.Processed != 2 {
		t.Fatalf("expected completed batch, got %+v", br.Progress)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/batches/"+id, nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected finished batch to be gone, got %d", res.StatusCode)
	}

	select {
	case s := <-got:
		if s.ID != id || s.Processed != 2 || s.State != batch.StateCompleted {
			t.Fatalf("unexpected webhook summary %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("webhook not delivered")
	}
}

func TestBatchRejectNeedsConfirmAndCancel(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()
	body := map[string]any{"ids": []string{"cand-linus", "cand-mae"}, "action": "reject"}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", body, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected confirmation required, got %d %s", res.StatusCode, string(data))
	}
	body["confirm"] = true
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start batch status %d: %s", res.StatusCode, string(data))
	}
	var br BatchResponse
	_ = json.Unmarshal(data, &br)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches/"+br.Progress.BatchID+"/cancel", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &br)
	if br.Progress.State != batch.StateCanceled || br.Progress.Processed != 0 {
		t.Fatalf("unexpected cancel progress %+v", br.Progress)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/cand-linus", nil, nil)
	var c domain.Candidate
	_ = json.Unmarshal(data, &c)
	if res.StatusCode != http.StatusOK || c.Disposition != domain.DispositionActive {
		t.Fatalf("canceled batch must not touch candidates: %d %+v", res.StatusCode, c)
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{JWTSecret: "topsecret"})
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must not need auth, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openings", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", res.StatusCode)
	}
	token, err := IssueToken("topsecret", "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/templates", map[string]any{
		"title":   "Polite no",
		"subject": "Update",
		"content": "Thanks {candidate_name}",
		"type":    "rejection",
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create template status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?entity_kind=template&limit=1", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var events EventList
	_ = json.Unmarshal(data, &events)
	if len(events.Items) != 1 || events.Items[0].ActorID != "alice" {
		t.Fatalf("expected template event by alice, got %+v", events.Items)
	}
}

func TestWebhooksAttachOncePerProcessor(t *testing.T) {
	var calls atomic.Int32
	got := make(chan struct{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		got <- struct{}{}
	}))
	defer hook.Close()

	p := batch.NewProcessor(nil, logger.Discard())
	hooks := []config.Webhook{{URL: hook.URL}}
	if !attachWebhooks(p, hooks, logger.Discard()) {
		t.Fatalf("expected first attach to wire the hooks")
	}
	if attachWebhooks(p, hooks, logger.Discard()) {
		t.Fatalf("expected second attach to be ignored")
	}
	p.Publish(batch.Summary{ID: "b-1", State: batch.StateCompleted})
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook not delivered")
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	srv := newTestServer(t, nil, AuthConfig{})
	client := srv.Client()
	bodies := make([][]byte, 8)
	errs := make([]error, len(bodies))
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				errs[i] = err
				return
			}
			defer res.Body.Close()
			bodies[i], errs[i] = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := range bodies {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if !bytes.Equal(bodies[i], bodies[0]) || len(bodies[i]) == 0 {
			t.Fatalf("request %d got a different document", i)
		}
	}
}
