package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/snarg/transcript-editor/internal/transcript"
)

// PlayState is the playback state.
type PlayState int

const (
	Idle PlayState = iota
	Playing
)

func (s PlayState) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

var (
	// ErrAlreadyPlaying is returned by Play while a run is in progress.
	ErrAlreadyPlaying = errors.New("playback already running")

	// ErrPlaybackTooLong is the result of a run cut short by the maximum
	// playback duration.
	ErrPlaybackTooLong = errors.New("playback exceeded maximum duration")
)

// HighlightFunc is called each time the highlighted word changes. index is
// -1 when no word is highlighted.
type HighlightFunc func(words []transcript.Word, index int)

// Player drives a timed highlight over a word sequence. Exactly one word is
// highlighted at a time while Playing; none while Idle.
type Player struct {
	onHighlight HighlightFunc
	maxDuration time.Duration
	after       func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	state   PlayState
	current int
	cancel  context.CancelFunc
	done    chan struct{}
	result  error
}

// NewPlayer creates an idle player. maxDuration bounds one run; zero
// disables the bound. onHighlight may be nil.
func NewPlayer(onHighlight HighlightFunc, maxDuration time.Duration) *Player {
	if onHighlight == nil {
		onHighlight = func([]transcript.Word, int) {}
	}
	return &Player{
		onHighlight: onHighlight,
		maxDuration: maxDuration,
		after:       time.After,
		current:     -1,
	}
}

// Play starts a run over a copy of words and returns immediately. An empty
// sequence is a no-op and the player stays Idle. A sequence whose summed
// durations exceed the maximum is refused with ErrPlaybackTooLong. The run
// ends when every word has been highlighted for its duration, when ctx is
// done, when Stop is called, or when the maximum duration elapses.
func (p *Player) Play(ctx context.Context, words []transcript.Word) error {
	if len(words) == 0 {
		return nil
	}
	if total := time.Duration(transcript.TotalDuration(words)) * time.Millisecond; p.maxDuration > 0 && total > p.maxDuration {
		return fmt.Errorf("%w: sequence runs %s, limit %s", ErrPlaybackTooLong, total, p.maxDuration)
	}
	words = transcript.Clone(words)

	p.mu.Lock()
	if p.state == Playing {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	runCtx, cancel := context.WithCancel(ctx)
	if p.maxDuration > 0 {
		runCtx, cancel = withDeadline(runCtx, cancel, p.maxDuration)
	}
	p.state = Playing
	p.current = 0
	p.cancel = cancel
	p.done = make(chan struct{})
	p.result = nil
	done := p.done
	p.mu.Unlock()

	p.onHighlight(words, 0)
	go p.run(runCtx, cancel, words, done)
	return nil
}

func withDeadline(ctx context.Context, parentCancel context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	timed, cancel := context.WithTimeout(ctx, d)
	return timed, func() {
		cancel()
		parentCancel()
	}
}

func (p *Player) run(ctx context.Context, cancel context.CancelFunc, words []transcript.Word, done chan struct{}) {
	defer close(done)
	defer cancel()

	var result error
	for i := 0; i < len(words); i++ {
		if i > 0 {
			p.mu.Lock()
			p.current = i
			p.mu.Unlock()
			p.onHighlight(words, i)
		}
		select {
		case <-p.after(time.Duration(words[i].Duration) * time.Millisecond):
		case <-ctx.Done():
			result = ctx.Err()
			if errors.Is(result, context.DeadlineExceeded) {
				result = ErrPlaybackTooLong
			}
		}
		if result != nil {
			break
		}
	}

	p.mu.Lock()
	p.state = Idle
	p.current = -1
	p.cancel = nil
	p.result = result
	p.mu.Unlock()
	p.onHighlight(words, -1)
}

// Stop cancels the current run and waits for the player to return to Idle.
// It is a no-op when Idle.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current run ends and returns its result: nil when
// every word was played, context.Canceled after Stop, ErrPlaybackTooLong
// when the maximum duration cut it short.
func (p *Player) Wait() error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *Player) State() PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the highlighted index, or -1.
func (p *Player) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
