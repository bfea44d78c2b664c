package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scheduler runs a job after a delay. async.Scheduler satisfies it.
type Scheduler interface {
	RunAfter(delay time.Duration, name string, job func(context.Context) error) bool
}

// Outcome of a delivery, reported to the result hook
const (
	OutcomeSent       = "sent"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
	OutcomeThrottled  = "throttled"
	OutcomeDropped    = "dropped"
)

// Dispatcher schedules notifications without waiting for delivery
type Dispatcher struct {
	notifier  Notifier
	scheduler Scheduler
	limiter   *RateLimiter
	logger    logrus.FieldLogger
	onResult  func(channel Channel, outcome string)
	now       func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(notifier Notifier, scheduler Scheduler, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		notifier:  notifier,
		scheduler: scheduler,
		logger:    logger,
		onResult:  func(Channel, string) {},
		now:       time.Now,
	}
}

// WithRateLimit caps messages per recipient
func (d *Dispatcher) WithRateLimit(l *RateLimiter) *Dispatcher {
	d.limiter = l
	return d
}

// OnResult registers a hook called with every delivery outcome
func (d *Dispatcher) OnResult(fn func(channel Channel, outcome string)) *Dispatcher {
	if fn != nil {
		d.onResult = fn
	}
	return d
}

// Send schedules msg for delivery and returns immediately
func (d *Dispatcher) Send(ctx context.Context, msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = d.now()
	}
	log := d.logger.WithFields(logrus.Fields{
		"notification_id": msg.ID,
		"channel":         msg.Channel,
		"template":        msg.Template,
	})

	if d.limiter != nil && !d.limiter.Allow(string(msg.Channel)+":"+msg.Recipient) {
		log.Warn("notification throttled")
		d.onResult(msg.Channel, OutcomeThrottled)
		return
	}

	scheduled := d.scheduler.RunAfter(0, "notify "+string(msg.Channel), func(ctx context.Context) error {
		err := d.notifier.Send(ctx, msg)
		switch {
		case err == nil:
			d.onResult(msg.Channel, OutcomeSent)
		case errors.Is(err, ErrSuppressed):
			log.Info("notification suppressed by provider")
			d.onResult(msg.Channel, OutcomeSuppressed)
		default:
			log.WithError(err).Warn("notification delivery failed")
			d.onResult(msg.Channel, OutcomeFailed)
		}
		return nil
	})
	if !scheduled {
		d.onResult(msg.Channel, OutcomeDropped)
	}
}
