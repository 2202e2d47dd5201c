// Package dispatch sequences completion requests: at most one request is in
// flight at a time, and replies come back on a channel so the session loop
// never blocks on the provider.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

// ErrRequestInFlight is returned when a dispatch is attempted while a
// previous one is still pending.
var ErrRequestInFlight = errors.New("completion request already in flight")

// Result carries one completed dispatch. Reply is the provider's raw text,
// marker blocks included; Err wraps ErrProviderFailure on provider trouble.
type Result struct {
	UserText string
	Reply    string
	Err      error
}

// Dispatcher sends user utterances to an ongoing chat session one at a time
type Dispatcher struct {
	session repositories.ChatSession
	logger  *zap.Logger
	results chan Result

	mu      sync.Mutex
	pending bool
}

// NewDispatcher wraps a chat session
func NewDispatcher(session repositories.ChatSession, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		session: session,
		logger:  logger,
		results: make(chan Result, 4),
	}
}

// Results returns the dispatcher's completion stream
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Pending reports whether a request is outstanding
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Dispatch sends one user utterance to the provider. It fails immediately
// with ErrRequestInFlight while a previous request is pending; the reply
// arrives on Results.
func (d *Dispatcher) Dispatch(ctx context.Context, userText string) error {
	d.mu.Lock()
	if d.pending {
		d.mu.Unlock()
		return ErrRequestInFlight
	}
	d.pending = true
	d.mu.Unlock()

	go func() {
		reply, err := d.session.SendMessage(ctx, repositories.ChatMessage{
			Role:    repositories.UserRole,
			Content: userText,
		})

		d.mu.Lock()
		d.pending = false
		d.mu.Unlock()

		if err != nil {
			d.logger.Warn("Completion request failed", zap.Error(err))
			d.results <- Result{UserText: userText, Err: err}
			return
		}
		d.results <- Result{UserText: userText, Reply: reply.Content}
	}()
	return nil
}

// History returns the provider-side conversation history
func (d *Dispatcher) History() []repositories.ChatMessage {
	return d.session.History()
}
