package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// ErrTransport wraps every failure to reach the store or understand its
// reply. It is distinct from transcript.ErrNotFound.
var ErrTransport = errors.New("transcript store unreachable")

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL      string // e.g. http://localhost:5000/api
	AuthToken    string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Log          zerolog.Logger
}

// Client talks to the transcript store over HTTP. Connection errors and 5xx
// replies are retried up to RetryMax times.
type Client struct {
	base  string
	token string
	http  *retryablehttp.Client
}

type updateRequest struct {
	ID      int    `json:"id"`
	NewWord string `json:"newWord"`
}

type updateResponse struct {
	Success     bool             `json:"success"`
	UpdatedWord *transcript.Word `json:"updatedWord"`
	Message     string           `json:"message"`
}

type updateAllRequest struct {
	Word    string `json:"word"`
	NewWord string `json:"newWord"`
}

type updateAllResponse struct {
	Success      bool              `json:"success"`
	UpdatedWords []transcript.Word `json:"updatedWords"`
	Count        int               `json:"count"`
}

func NewClient(opts ClientOptions) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{opts.Log.With().Str("component", "client").Logger()}

	return &Client{
		base:  strings.TrimRight(opts.BaseURL, "/"),
		token: opts.AuthToken,
		http:  rc,
	}
}

// retryPolicy retries connection errors and 5xx replies other than 501.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// FetchAll returns the store's current sequence.
func (c *Client) FetchAll(ctx context.Context) ([]transcript.Word, error) {
	var words []transcript.Word
	status, err := c.do(ctx, http.MethodGet, "/transcript", nil, &words)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch returned status %d", ErrTransport, status)
	}
	if words == nil {
		words = []transcript.Word{}
	}
	return words, nil
}

// UpdateWord replaces the text of one word in the store. A missing id
// yields transcript.ErrNotFound.
func (c *Client) UpdateWord(ctx context.Context, id int, text string) (transcript.Word, error) {
	var resp updateResponse
	status, err := c.do(ctx, http.MethodPost, "/transcript/update", updateRequest{ID: id, NewWord: text}, &resp)
	if err != nil {
		return transcript.Word{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return transcript.Word{}, fmt.Errorf("id %d: %w", id, transcript.ErrNotFound)
	case status != http.StatusOK:
		return transcript.Word{}, fmt.Errorf("%w: update returned status %d", ErrTransport, status)
	case !resp.Success || resp.UpdatedWord == nil:
		return transcript.Word{}, fmt.Errorf("%w: update reply missing updatedWord", ErrTransport)
	}
	return *resp.UpdatedWord, nil
}

// UpdateAll replaces the text of every stored word whose current text equals
// match. Zero matches yields an empty slice.
func (c *Client) UpdateAll(ctx context.Context, match, text string) ([]transcript.Word, error) {
	var resp updateAllResponse
	status, err := c.do(ctx, http.MethodPost, "/transcript/update-all", updateAllRequest{Word: match, NewWord: text}, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !resp.Success {
		return nil, fmt.Errorf("%w: update-all returned status %d", ErrTransport, status)
	}
	if resp.UpdatedWords == nil {
		resp.UpdatedWords = []transcript.Word{}
	}
	return resp.UpdatedWords, nil
}

// do sends a JSON request and decodes the JSON reply into out for 200 and
// 404 responses. It returns the final status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read reply: %w", ErrTransport, err)
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("%w: decode reply: %w", ErrTransport, err)
		}
	}
	return resp.StatusCode, nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
