package notify

import (
	"context"
	"sync"
)

// Email is a single outbound message
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender delivers transactional emails
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Recorder is a Sender that records sent emails, for tests
type Recorder struct {
	mu   sync.Mutex
	sent []Email
	// Err, when set, is returned from Send
	Err error
}

func (r *Recorder) Send(ctx context.Context, email Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, email)
	return nil
}

// Sent returns a copy of all recorded emails
func (r *Recorder) Sent() []Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Email, len(r.sent))
	copy(out, r.sent)
	return out
}
