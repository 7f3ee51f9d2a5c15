package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/pillMemo/internal/model"
	myopenai "github.com/pathakanu/pillMemo/internal/openai"
	"github.com/pathakanu/pillMemo/internal/reminder"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	defaultInterval      = time.Minute
	defaultNotifyTimeout = 15 * time.Second
	defaultConcurrency   = 8
)

// ErrAlreadyStarted is returned by Start when the scheduler is already running.
var ErrAlreadyStarted = errors.New("dispatch poller already started")

// Notifier delivers a message body to a destination address.
type Notifier interface {
	Send(ctx context.Context, destination, body string) error
}

// Composer renders the message body for a reminder.
type Composer interface {
	Compose(ctx context.Context, r model.Reminder, loc *time.Location) (string, error)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(ctx context.Context, r model.Reminder, loc *time.Location) (string, error)

// Compose calls f.
func (f ComposerFunc) Compose(ctx context.Context, r model.Reminder, loc *time.Location) (string, error) {
	return f(ctx, r, loc)
}

// Options tune the poller. Zero values fall back to defaults.
type Options struct {
	Interval      time.Duration
	NotifyTimeout time.Duration
	Concurrency   int
	Retry         RetryPolicy
	Location      *time.Location
	Composer      Composer
	Clock         func() time.Time
}

// TickResult summarises one dispatch pass.
// Sent counts reminders delivered and marked sent. Unconfirmed counts
// reminders delivered whose status update failed; they stay pending and are
// delivered again on a later tick.
type TickResult struct {
	TickID      string
	Now         time.Time
	Due         int
	Sent        int
	Unconfirmed int
	Failed      int
	Abandoned   int
	Skipped     int
	Err         error
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeUnconfirmed
	outcomeFailed
	outcomeAbandoned
	outcomeSkipped
)

// Poller periodically delivers due reminders and records their status.
type Poller struct {
	store    reminder.Store
	notifier Notifier
	composer Composer
	opts     Options
	now      func() time.Time
	log      logrus.FieldLogger

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a poller. It does nothing until Start is called.
func New(store reminder.Store, notifier Notifier, opts Options, log logrus.FieldLogger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	p := &Poller{
		store:    store,
		notifier: notifier,
		composer: opts.Composer,
		opts:     opts,
		now:      opts.Clock,
		log:      log.WithField("component", "dispatch"),
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.composer == nil {
		p.composer = ComposerFunc(func(_ context.Context, r model.Reminder, loc *time.Location) (string, error) {
			return myopenai.TemplateMessage(r, loc), nil
		})
	}
	return p
}

// Start registers the dispatch job and starts the scheduler loop.
// A tick that is still running when the next one fires causes that next one to be skipped.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return ErrAlreadyStarted
	}

	cronLogger := cron.PrintfLogger(p.log)
	c := cron.New(
		cron.WithLocation(p.opts.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	c.Schedule(cron.Every(p.opts.Interval), cron.FuncJob(p.run))
	c.Start()
	p.cron = c

	p.log.WithField("interval", p.opts.Interval.String()).Info("reminder dispatch started")
	return nil
}

// Stop stops the scheduler and waits for a running tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	ctx := c.Stop()
	<-ctx.Done()
	p.log.Info("reminder dispatch stopped")
}

func (p *Poller) run() {
	p.Tick(context.Background(), p.now())
}

// Tick runs one dispatch pass for reminders due at now.
// Failures are logged and reflected in the result; they never abort other reminders.
func (p *Poller) Tick(ctx context.Context, now time.Time) TickResult {
	result := TickResult{TickID: uuid.NewString(), Now: now}
	log := p.log.WithField("tick_id", result.TickID)

	due, err := p.store.FetchDue(ctx, now)
	if err != nil {
		log.WithError(err).Warn("reminder store unavailable, skipping tick")
		result.Err = err
		return result
	}
	result.Due = len(due)
	if len(due) == 0 {
		log.Debug("no due reminders")
		return result
	}

	var (
		wg                                            sync.WaitGroup
		sent, unconfirmed, failed, abandoned, skipped atomic.Int64
	)
	sem := make(chan struct{}, p.opts.Concurrency)

dispatchLoop:
	for _, r := range due {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			log.WithError(ctx.Err()).Warn("tick cancelled before all reminders were dispatched")
			break dispatchLoop
		}

		wg.Add(1)
		go func(r model.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			switch p.safeProcess(ctx, log, now, r) {
			case outcomeSent:
				sent.Add(1)
			case outcomeUnconfirmed:
				unconfirmed.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeAbandoned:
				abandoned.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			}
		}(r)
	}
	wg.Wait()

	result.Sent = int(sent.Load())
	result.Unconfirmed = int(unconfirmed.Load())
	result.Failed = int(failed.Load())
	result.Abandoned = int(abandoned.Load())
	result.Skipped = int(skipped.Load())

	log.WithFields(logrus.Fields{
		"due":         result.Due,
		"sent":        result.Sent,
		"unconfirmed": result.Unconfirmed,
		"failed":      result.Failed,
		"abandoned":   result.Abandoned,
		"skipped":     result.Skipped,
	}).Info("dispatch tick finished")
	return result
}

// safeProcess runs process and turns a panic into a failed outcome so the
// remaining reminders of the tick still run. The reminder stays pending.
func (p *Poller) safeProcess(ctx context.Context, log logrus.FieldLogger, now time.Time, r model.Reminder) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(logrus.Fields{
				"reminder_id": r.ID,
				"panic":       fmt.Sprint(rec),
			}).Error("reminder processing panicked")
			out = outcomeFailed
		}
	}()
	return p.process(ctx, log, now, r)
}

func (p *Poller) process(ctx context.Context, log logrus.FieldLogger, now time.Time, r model.Reminder) outcome {
	entry := log.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"attempts":    r.Attempts,
	})

	if !p.opts.Retry.ShouldAttempt(r, now) {
		entry.Debug("reminder in retry backoff")
		return outcomeSkipped
	}

	body := p.compose(ctx, entry, r)

	sendErr := p.send(ctx, r.DestinationAddress, body)
	if sendErr == nil {
		if err := p.store.MarkSent(ctx, r.ID, p.now()); err != nil {
			// The reminder stays pending and is delivered again next tick.
			entry.WithError(err).Error("reminder delivered but could not be marked sent")
			return outcomeUnconfirmed
		}
		entry.Debug("reminder sent")
		return outcomeSent
	}

	reason := sendErr.Error()
	if p.opts.Retry.Exhausted(r.Attempts + 1) {
		entry.WithError(sendErr).Warn("reminder delivery failed, retry limit reached")
		if err := p.store.MarkFailed(ctx, r.ID, p.now(), reason); err != nil {
			entry.WithError(err).Error("could not mark reminder failed")
		}
		return outcomeAbandoned
	}

	entry.WithError(sendErr).Warn("reminder delivery failed, will retry")
	if err := p.store.RecordFailure(ctx, r.ID, p.now(), reason); err != nil {
		entry.WithError(err).Error("could not record delivery failure")
	}
	return outcomeFailed
}

// compose asks the composer only for a reminder's first attempt. Retries use
// the template so a reminder failing every tick does not hit the model every tick.
func (p *Poller) compose(ctx context.Context, log logrus.FieldLogger, r model.Reminder) string {
	if r.Attempts > 0 {
		return myopenai.TemplateMessage(r, p.opts.Location)
	}
	body, err := p.composer.Compose(ctx, r, p.opts.Location)
	if err != nil || body == "" {
		if err != nil {
			log.WithError(err).Debug("composer failed, using template")
		}
		return myopenai.TemplateMessage(r, p.opts.Location)
	}
	return body
}

// send calls the notifier under the per-call timeout. A notifier that ignores
// ctx is abandoned when the timeout fires and the call counts as failed.
func (p *Poller) send(ctx context.Context, destination, body string) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.NotifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("notifier panic: %v", rec)
			}
		}()
		done <- p.notifier.Send(ctx, destination, body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return fmt.Errorf("notify %s: %w", destination, ctx.Err())
	}
}
