package editor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// ChangeEvent is one change notification from the store's WebSocket stream.
type ChangeEvent struct {
	ID        string `json:"event_id"`
	Type      string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	WordIDs   []int  `json:"word_ids"`
	Data      struct {
		Words []transcript.Word `json:"words"`
	} `json:"data"`
}

// StreamURL derives the WebSocket stream URL from the API base URL.
func StreamURL(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported API URL scheme %q", u.Scheme)
	}
	u.Path += "/transcript/ws"
	return u.String(), nil
}

// Watch connects to the store's change stream and calls fn for each event
// until ctx is done or the connection drops.
func Watch(ctx context.Context, apiBase, token string, fn func(ChangeEvent)) error {
	wsURL, err := StreamURL(apiBase)
	if err != nil {
		return err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var ev ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		fn(ev)
	}
}
