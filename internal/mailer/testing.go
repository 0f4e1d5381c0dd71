package mailer

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-memory Sender for tests.
type Recorder struct {
	// Err, when set, fails every send.
	Err error

	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	r.sent = append(r.sent, msg)
	return fmt.Sprintf("msg-%d", len(r.sent)), nil
}

// Sent returns the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

var _ Sender = (*Recorder)(nil)
