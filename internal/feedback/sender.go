package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"recruitline/internal/domain"
)

// Message is one rendered feedback delivery.
type Message struct {
	CandidateID string
	To          string
	Action      domain.Action
	Subject     string
	Content     string
	Attachment  string
}

// Sender delivers feedback to a candidate.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// TransientSendError reports a failed delivery. The item it belongs to stays
// pending and may be retried.
type TransientSendError struct {
	CandidateID string
	Err         error
}

func (e *TransientSendError) Error() string {
	return fmt.Sprintf("send feedback to %s: %v", e.CandidateID, e.Err)
}

func (e *TransientSendError) Unwrap() error { return e.Err }

// Deliver sends m and wraps any failure in a TransientSendError.
func Deliver(ctx context.Context, s Sender, m Message) error {
	if err := s.Send(ctx, m); err != nil {
		return &TransientSendError{CandidateID: m.CandidateID, Err: err}
	}
	return nil
}

// SimulatedSender stands in for a mail gateway: it waits Delay and succeeds.
type SimulatedSender struct {
	Delay time.Duration
	Log   logrus.FieldLogger
}

func (s SimulatedSender) Send(ctx context.Context, m Message) error {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.WithFields(logrus.Fields{
			"candidate_id": m.CandidateID,
			"action":       m.Action,
			"subject":      m.Subject,
		}).Debug("feedback delivered")
	}
	return nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) Send(ctx context.Context, m Message) error { return f(ctx, m) }
