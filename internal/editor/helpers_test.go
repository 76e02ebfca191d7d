package editor

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/api"
	"github.com/snarg/transcript-editor/internal/config"
	"github.com/snarg/transcript-editor/internal/eventbus"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// newTestServer serves the real API over a seeded store.
func newTestServer(t *testing.T, token string) (*httptest.Server, *transcript.Store) {
	t.Helper()
	store := transcript.NewSeededStore()
	bus := eventbus.New(64)
	store.OnChange(bus.HandleChange)

	router := api.NewRouter(api.ServerOptions{
		Config:    &config.Config{AuthToken: token},
		Store:     store,
		Events:    bus,
		Version:   "test",
		StartTime: time.Now(),
		Log:       zerolog.Nop(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func newTestClient(baseURL, token string) *Client {
	return NewClient(ClientOptions{
		BaseURL:      baseURL,
		AuthToken:    token,
		Timeout:      2 * time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Log:          zerolog.Nop(),
	})
}
