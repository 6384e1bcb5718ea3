package media

import (
	"context"
	"sync"
)

// Sink renders one clip, blocking until playback finishes or the context is
// cancelled.
type Sink interface {
	Play(ctx context.Context, clip Clip) error
}

// Player serializes question playback. Every Play supersedes the previous
// one: the old playback is cancelled and its completion callback suppressed,
// so a stale clip can never fire events after the interview moved on.
type Player struct {
	sink Sink

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

func NewPlayer(sink Sink) *Player {
	return &Player{sink: sink}
}

// Play starts the clip asynchronously and returns its request token. onDone,
// when non-nil, runs only if this playback is still the current one when it
// ends.
func (p *Player) Play(ctx context.Context, clip Clip, onDone func(err error)) uint64 {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.token++
	token := p.token
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		err := p.sink.Play(playCtx, clip)
		cancel()

		p.mu.Lock()
		current := p.token == token
		if current {
			p.cancel = nil
		}
		p.mu.Unlock()

		if current && onDone != nil {
			onDone(err)
		}
	}()
	return token
}

// Stop cancels the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.token++
}
