// Package testutil provides testing utilities for the search client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/fssp-client/pkg/client"
)

// MockResponse is a canned HTTP answer.
type MockResponse struct {
	StatusCode int
	Body       string
}

// Submission records one call to search/group.
type Submission struct {
	At    time.Time
	Token string
	Items int
	Body  []byte
}

// MockMatch is one case entry in a mocked result payload.
type MockMatch struct {
	Name          string
	ExeProduction string
	Details       string
	Subject       string
	Bailiff       string
	IPEnd         string
}

// MockFSSP is a configurable mock of the search service.
type MockFSSP struct {
	server *httptest.Server
	now    func() time.Time

	mu              sync.Mutex
	submitResponses []MockResponse
	taskSeq         int
	statusCodes     map[string]int
	statusHTTP      map[string]MockResponse
	results         map[string]MockResponse

	// Tracking
	Submissions []Submission
	StatusCalls []string
	ResultCalls []string
}

// NewMockFSSP creates a mock service. now stamps recorded submissions; nil
// means time.Now.
func NewMockFSSP(now func() time.Time) *MockFSSP {
	if now == nil {
		now = time.Now
	}
	mock := &MockFSSP{
		now:         now,
		statusCodes: make(map[string]int),
		statusHTTP:  make(map[string]MockResponse),
		results:     make(map[string]MockResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/group", mock.handleSearchGroup)
	mux.HandleFunc("/status", mock.handleStatus)
	mux.HandleFunc("/result", mock.handleResult)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL, usable as client base URL.
func (m *MockFSSP) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockFSSP) Close() {
	m.server.Close()
}

// QueueSubmit appends responses returned by successive search/group calls.
// When the queue is empty a new task id ("T1", "T2", ...) is returned.
func (m *MockFSSP) QueueSubmit(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitResponses = append(m.submitResponses, responses...)
}

// SetStatus sets the status code reported for task. Unknown tasks report 0.
func (m *MockFSSP) SetStatus(task string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCodes[task] = code
}

// SetStatusResponse makes the status endpoint answer task with resp.
func (m *MockFSSP) SetStatusResponse(task string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusHTTP[task] = resp
}

// SetResult sets the result payload for task from per-element matches.
func (m *MockFSSP) SetResult(task string, elements ...[]MockMatch) {
	m.SetResultResponse(task, MockResponse{StatusCode: http.StatusOK, Body: ResultBody(elements...)})
}

// SetResultResponse makes the result endpoint answer task with resp.
func (m *MockFSSP) SetResultResponse(task string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[task] = resp
}

// SubmissionCount returns the number of search/group calls.
func (m *MockFSSP) SubmissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submissions)
}

// SubmissionTimes returns when each search/group call arrived.
func (m *MockFSSP) SubmissionTimes() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.Submissions))
	for i, s := range m.Submissions {
		out[i] = s.At
	}
	return out
}

// Calls returns copies of the recorded status and result calls.
func (m *MockFSSP) Calls() (status, result []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.StatusCalls...), append([]string(nil), m.ResultCalls...)
}

func (m *MockFSSP) handleSearchGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, `{"exception":"method not allowed"}`)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req struct {
		Token   string            `json:"token"`
		Request []json.RawMessage `json:"request"`
	}
	_ = json.Unmarshal(body, &req)

	m.mu.Lock()
	m.Submissions = append(m.Submissions, Submission{
		At:    m.now(),
		Token: req.Token,
		Items: len(req.Request),
		Body:  body,
	})

	var resp MockResponse
	if len(m.submitResponses) > 0 {
		resp = m.submitResponses[0]
		m.submitResponses = m.submitResponses[1:]
	} else {
		m.taskSeq++
		resp = NewTaskResponse(fmt.Sprintf("T%d", m.taskSeq))
	}
	m.mu.Unlock()

	writeJSON(w, resp.StatusCode, resp.Body)
}

func (m *MockFSSP) handleStatus(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")

	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, task)
	override, hasOverride := m.statusHTTP[task]
	code := m.statusCodes[task]
	m.mu.Unlock()

	if hasOverride {
		writeJSON(w, override.StatusCode, override.Body)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"status":"success","code":%d,"exception":"","response":{"status":%d}}`, code, code))
}

func (m *MockFSSP) handleResult(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")

	m.mu.Lock()
	m.ResultCalls = append(m.ResultCalls, task)
	resp, ok := m.results[task]
	m.mu.Unlock()

	if !ok {
		resp = MockResponse{StatusCode: http.StatusOK, Body: ResultBody()}
	}
	writeJSON(w, resp.StatusCode, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

// NewTaskResponse creates a 200 search/group response carrying task.
func NewTaskResponse(task string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"status":"success","code":0,"exception":"","response":{"task":%q}}`, task),
	}
}

// NewRateLimitedResponse creates the 429 "wait for previous group request" answer.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       fmt.Sprintf(`{"status":"error","code":429,"exception":%q,"response":[]}`, client.RateLimitReason),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status":"error","code":500,"exception":"Internal server error"}`,
	}
}

// ResultBody renders a result payload with one element per argument.
func ResultBody(elements ...[]MockMatch) string {
	type entry struct {
		Name          string `json:"name"`
		ExeProduction string `json:"exe_production"`
		Details       string `json:"details"`
		Subject       string `json:"subject"`
		Bailiff       string `json:"bailiff"`
		IPEnd         string `json:"ip_end"`
	}
	type element struct {
		Status int     `json:"status"`
		Result []entry `json:"result"`
	}

	out := make([]element, len(elements))
	for i, matches := range elements {
		entries := make([]entry, len(matches))
		for j, mm := range matches {
			entries[j] = entry(mm)
		}
		out[i] = element{Result: entries}
	}

	data, _ := json.Marshal(out)
	var b strings.Builder
	b.WriteString(`{"status":"success","code":0,"exception":"","response":{"status":0,"result":`)
	b.Write(data)
	b.WriteString(`}}`)
	return b.String()
}
