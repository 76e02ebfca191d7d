package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/transcript/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false}`))
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/transcript/{id}", "404"))
	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/transcript/"+id, nil))
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/transcript/{id}", "404"))

	if after-before != 3 {
		t.Errorf("requests counted = %v, want 3 under one route pattern", after-before)
	}
}

func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: 200}
	sw.Write([]byte("data"))
	sw.Flush()
	if !rec.Flushed {
		t.Error("Flush was not forwarded")
	}
	if sw.written != 4 {
		t.Errorf("written = %d, want 4", sw.written)
	}
}

type fakeStats struct{}

func (fakeStats) WordCount() int         { return 12 }
func (fakeStats) SubscriberCount() int   { return 2 }
func (fakeStats) EventsPublished() int64 { return 7 }

func TestCollector(t *testing.T) {
	t.Run("reads_live_stats", func(t *testing.T) {
		c := NewCollector(nil, fakeStats{})
		expected := `
# HELP transcript_words Number of words held by the store.
# TYPE transcript_words gauge
transcript_words 12
# HELP transcript_stream_subscribers Current number of SSE and WebSocket subscribers.
# TYPE transcript_stream_subscribers gauge
transcript_stream_subscribers 2
`
		if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
			"transcript_words", "transcript_stream_subscribers"); err != nil {
			t.Error(err)
		}
	})

	t.Run("nil_sources_report_zero", func(t *testing.T) {
		c := NewCollector(nil, nil)
		if n := testutil.CollectAndCount(c); n != 6 {
			t.Errorf("collected %d metrics, want 6", n)
		}
	})
}
