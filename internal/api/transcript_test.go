package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/config"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// fakeEvents is an EventSource that hands every subscriber the same
// pre-loaded events.
type fakeEvents struct {
	mu     sync.Mutex
	events []Event
	subs   int
}

func (f *fakeEvents) Subscribe(filter EventFilter) (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	ch := make(chan Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	return ch, func() {
		f.mu.Lock()
		f.subs--
		f.mu.Unlock()
	}
}

func (f *fakeEvents) ReplaySince(lastEventID string, filter EventFilter) []Event {
	return nil
}

func (f *fakeEvents) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}

type fakeDB struct{ err error }

type fakeWatcher struct{ reloads int64 }

func (f fakeWatcher) Status() string  { return "watching" }
func (f fakeWatcher) Reloads() int64 { return f.reloads }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }

func newTestRouter(t *testing.T, store *transcript.Store, token string, events EventSource) http.Handler {
	t.Helper()
	if events == nil {
		events = &fakeEvents{}
	}
	return NewRouter(ServerOptions{
		Config:      &config.Config{AuthToken: token},
		Store:       store,
		Events:      events,
		OpenAPISpec: []byte("openapi: 3.0.3\n"),
		Version:     "test",
		StartTime:   time.Now(),
		Log:         zerolog.Nop(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFetchTranscript(t *testing.T) {
	h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
	rec := do(t, h, "GET", "/api/transcript", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var raw []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(raw) != 12 {
		t.Fatalf("got %d words, want 12", len(raw))
	}
	// Wire field names must match the original client.
	first := raw[0]
	for _, k := range []string{"id", "word", "start_time", "duration"} {
		if _, ok := first[k]; !ok {
			t.Errorf("missing wire field %q in %v", k, first)
		}
	}
	if first["word"] != "Hello" {
		t.Errorf("first word = %v, want Hello", first["word"])
	}
}

func TestUpdateWord(t *testing.T) {
	t.Run("updates_existing_word", func(t *testing.T) {
		store := transcript.NewSeededStore()
		h := newTestRouter(t, store, "", nil)

		rec := do(t, h, "POST", "/api/transcript/update", `{"id":4,"newWord":"was"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
		}
		want := `{"success":true,"updatedWord":{"id":4,"word":"was","start_time":1500,"duration":200}}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("body = %s\nwant   %s", got, want)
		}

		seed := transcript.Seed()
		for i, w := range store.FetchAll() {
			if w.ID == 4 {
				if w.Text != "was" {
					t.Errorf("stored word 4 = %q, want was", w.Text)
				}
				continue
			}
			if w != seed[i] {
				t.Errorf("word %d changed: %+v", w.ID, w)
			}
		}
	})

	t.Run("absent_id_returns_404", func(t *testing.T) {
		store := transcript.NewSeededStore()
		h := newTestRouter(t, store, "", nil)

		rec := do(t, h, "POST", "/api/transcript/update", `{"id":999,"newWord":"x"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		want := `{"success":false,"message":"Word not found"}`
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("body = %s, want %s", got, want)
		}

		before, _ := json.Marshal(transcript.Seed())
		after, _ := json.Marshal(store.FetchAll())
		if string(before) != string(after) {
			t.Error("sequence changed after NotFound update")
		}
	})

	t.Run("empty_text_accepted", func(t *testing.T) {
		h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
		rec := do(t, h, "POST", "/api/transcript/update", `{"id":1,"newWord":""}`)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"malformed_json", `{"id":`},
		{"missing_id", `{"newWord":"x"}`},
		{"missing_new_word", `{"id":1}`},
		{"string_id", `{"id":"1","newWord":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
			rec := do(t, h, "POST", "/api/transcript/update", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	t.Run("decode_error_detail", func(t *testing.T) {
		h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
		rec := do(t, h, "POST", "/api/transcript/update", `{"id":`)
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if body.Error != "invalid request body" || body.Detail == "" {
			t.Errorf("body = %+v, want error with decode detail", body)
		}
	})
}

func TestUpdateAll(t *testing.T) {
	store, err := transcript.NewStore([]transcript.Word{
		{ID: 1, Text: "is", StartTime: 0, Duration: 10},
		{ID: 2, Text: "it", StartTime: 10, Duration: 10},
		{ID: 3, Text: "is", StartTime: 20, Duration: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, store, "", nil)

	rec := do(t, h, "POST", "/api/transcript/update-all", `{"word":"is","newWord":"was"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp UpdateAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Count != 2 || len(resp.UpdatedWords) != 2 {
		t.Errorf("resp = %+v, want 2 updates", resp)
	}

	rec = do(t, h, "POST", "/api/transcript/update-all", `{"word":"zzz","newWord":"x"}`)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"updatedWords":[],"count":0}` {
		t.Errorf("no-match body = %s", got)
	}

	rec = do(t, h, "POST", "/api/transcript/update-all", `{"newWord":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing word: status = %d, want 400", rec.Code)
	}
}

func TestGetWord(t *testing.T) {
	h := newTestRouter(t, transcript.NewSeededStore(), "", nil)

	rec := do(t, h, "GET", "/api/transcript/4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var w transcript.Word
	json.Unmarshal(rec.Body.Bytes(), &w)
	if w.Text != "is" {
		t.Errorf("word = %+v, want is", w)
	}

	if rec := do(t, h, "GET", "/api/transcript/999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("absent: status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, "GET", "/api/transcript/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric: status = %d, want 400", rec.Code)
	}
}

func TestExport(t *testing.T) {
	h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
	rec := do(t, h, "GET", "/api/transcript/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="transcript.json"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "[\n  {\n    \"id\": 1,") {
		t.Errorf("export is not two-space indented: %q", rec.Body.String()[:40])
	}
}

func TestMutationAuth(t *testing.T) {
	h := newTestRouter(t, transcript.NewSeededStore(), "secret", nil)

	if rec := do(t, h, "GET", "/api/transcript", ""); rec.Code != http.StatusOK {
		t.Errorf("read without token: status = %d, want 200", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/transcript/update", `{"id":1,"newWord":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("write without token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/transcript/update", strings.NewReader(`{"id":1,"newWord":"x"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("write with token: status = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Run("defaults_not_configured", func(t *testing.T) {
		h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
		rec := do(t, h, "GET", "/api/health", "")
		var resp HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "healthy" || resp.Words != 12 || resp.Version != "test" {
			t.Errorf("resp = %+v", resp)
		}
		if resp.Checks["database"] != "not_configured" || resp.Checks["mqtt"] != "not_configured" {
			t.Errorf("checks = %v", resp.Checks)
		}
	})

	t.Run("database_error_degrades", func(t *testing.T) {
		hh := NewHealthHandler(transcript.NewSeededStore(), HealthDeps{DB: fakeDB{err: errors.New("down")}}, "v", time.Now())
		rec := httptest.NewRecorder()
		hh.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
		var resp HealthResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Status != "degraded" || resp.Checks["database"] != "error" {
			t.Errorf("resp = %+v, want degraded with database error", resp)
		}
	})

	t.Run("seed_watcher_reloads", func(t *testing.T) {
		hh := NewHealthHandler(transcript.NewSeededStore(), HealthDeps{Watcher: fakeWatcher{reloads: 3}}, "v", time.Now())
		rec := httptest.NewRecorder()
		hh.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
		var resp HealthResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Checks["seed_watcher"] != "watching" || resp.SeedReloads != 3 {
			t.Errorf("resp = %+v, want watching with 3 reloads", resp)
		}
	})
}

func TestOpenAPIAndMetricsRoutes(t *testing.T) {
	h := newTestRouter(t, transcript.NewSeededStore(), "", nil)
	if rec := do(t, h, "GET", "/api/openapi.yaml", ""); rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "openapi:") {
		t.Errorf("openapi: status = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, "GET", "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics: status = %d", rec.Code)
	}
}

func TestStreamEvents(t *testing.T) {
	events := &fakeEvents{events: []Event{{
		ID:      "1-1",
		Type:    transcript.ChangeWordUpdated,
		WordIDs: []int{4},
		Data:    []byte(`{"words":[{"id":4,"word":"was","start_time":1500,"duration":200}]}`),
	}}}
	srv := httptest.NewServer(newTestRouter(t, transcript.NewSeededStore(), "", events))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/transcript/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() && len(lines) < 3 {
		lines = append(lines, sc.Text())
	}
	if len(lines) < 3 {
		t.Fatalf("read %d lines, want 3", len(lines))
	}
	if lines[0] != "id: 1-1" || lines[1] != "event: word_updated" || !strings.HasPrefix(lines[2], "data: {\"words\"") {
		t.Errorf("unexpected frame: %q", lines)
	}
}

// chanEvents hands its single subscriber a channel the test publishes into.
type chanEvents struct {
	ch chan Event
}

func (c *chanEvents) Subscribe(filter EventFilter) (<-chan Event, func()) {
	return c.ch, func() {}
}

func (c *chanEvents) ReplaySince(lastEventID string, filter EventFilter) []Event { return nil }

func (c *chanEvents) SubscriberCount() int { return 1 }

func TestStreamEventsOutlivesWriteTimeout(t *testing.T) {
	events := &chanEvents{ch: make(chan Event, 1)}
	srv := httptest.NewUnstartedServer(newTestRouter(t, transcript.NewSeededStore(), "", events))
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/transcript/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	go func() {
		time.Sleep(700 * time.Millisecond)
		events.ch <- Event{
			ID:   "1-1",
			Type: transcript.ChangeWordUpdated,
			Data: []byte(`{"words":[]}`),
		}
	}()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "id: 1-1" {
			return
		}
	}
	t.Fatalf("stream ended before the late event arrived: %v", sc.Err())
}

func TestWebSocketStream(t *testing.T) {
	events := &fakeEvents{events: []Event{{
		ID:      "1-1",
		Type:    transcript.ChangeWordUpdated,
		WordIDs: []int{4},
		Data:    []byte(`{"words":[{"id":4,"word":"was","start_time":1500,"duration":200}]}`),
	}}}
	srv := httptest.NewServer(newTestRouter(t, transcript.NewSeededStore(), "", events))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/transcript/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		ID   string        `json:"event_id"`
		Type string        `json:"event_type"`
		Data ChangePayload `json:"data"`
		IDs  []int         `json:"word_ids"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.ID != "1-1" || msg.Type != transcript.ChangeWordUpdated {
		t.Errorf("msg = %+v", msg)
	}
	if len(msg.Data.Words) != 1 || msg.Data.Words[0].Text != "was" {
		t.Errorf("payload = %+v", msg.Data)
	}
}
