package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"recruitline/internal/batch"
	"recruitline/internal/config"
	"recruitline/internal/domain"
	"recruitline/internal/events"
	"recruitline/internal/feedback"
	"recruitline/internal/repo"
)

// ErrNotConfirmed is returned when the confirmation gate declines a
// destructive operation.
var ErrNotConfirmed = errors.New("operation not confirmed")

type Engine struct {
	DB      *sqlx.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Log     logrus.FieldLogger
	Sender  feedback.Sender
	Confirm Confirmer
	Batches *batch.Processor
}

func New(db *sqlx.DB, cfg *config.Config, log logrus.FieldLogger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Now:    time.Now,
		Log:    log,
		Sender: feedback.SimulatedSender{Delay: cfg.Feedback.SendDelay.Std(), Log: log},
	}
	return e.WithBatches()
}

// WithBatches attaches a fresh batch processor bound to a copy of e. Call it
// again after replacing Sender, Config or Now.
func (e Engine) WithBatches() Engine {
	e.Events.Now = e.Now
	e.Batches = batch.NewProcessor(e, e.Log)
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) sender() feedback.Sender {
	if e.Sender != nil {
		return e.Sender
	}
	return feedback.SimulatedSender{}
}

func (e Engine) deletesOnReject(screen domain.Screen) bool {
	return e.Config != nil && e.Config.DeletesOnReject(screen)
}

// Prompt is shown to the confirmation surface before a destructive operation.
type Prompt struct {
	Action       string
	CandidateIDs []string
}

// Confirmer is a synchronous yes/no gate.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) bool
}

type ConfirmFunc func(ctx context.Context, p Prompt) bool

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) bool { return f(ctx, p) }

// Confirmed answers every prompt with yes.
func Confirmed(yes bool) Confirmer {
	return ConfirmFunc(func(context.Context, Prompt) bool { return yes })
}

func (e Engine) confirm(ctx context.Context, p Prompt) error {
	if e.Confirm == nil || !e.Confirm.Confirm(ctx, p) {
		return ErrNotConfirmed
	}
	return nil
}
