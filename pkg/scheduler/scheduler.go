// Package scheduler places a task into a user's free time. An oracle
// proposes a cognitive profile and a slot; the slot is only accepted after
// it is re-checked against the real free windows, the deadline and the
// user's other commitments. Otherwise a deterministic biorhythm ladder
// picks the slot.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/oracle"
	"github.com/harrisonrobin/effitime/pkg/util"
)

const (
	DefaultHorizon  = 7 * 24 * time.Hour
	DefaultLeadTime = 30 * time.Minute
)

// Client schedules tasks with an oracle and falls back to the biorhythm
// ladder when the oracle's slot does not survive validation.
type Client struct {
	oracle   oracle.Oracle
	retry    oracle.Retry
	log      *zap.Logger
	now      func() time.Time
	horizon  time.Duration
	leadTime time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithMaxAttempts bounds how many times the oracle is asked.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.retry.MaxAttempts = n }
}

// WithAttemptTimeout bounds each oracle call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) { c.retry.AttemptTimeout = d }
}

// WithSleep replaces the pause between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.retry.Sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithHorizon sets how far ahead to look when a task has no deadline.
func WithHorizon(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.horizon = d
		}
	}
}

// WithLeadTime sets the minimum gap between now and a fallback start.
func WithLeadTime(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.leadTime = d
		}
	}
}

// New returns a Client. A nil logger discards logs.
func New(o oracle.Oracle, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		oracle:   o,
		log:      log.Named("scheduler"),
		now:      time.Now,
		horizon:  DefaultHorizon,
		leadTime: DefaultLeadTime,
	}
	c.retry.MaxAttempts = oracle.DefaultMaxAttempts
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Log = c.log
	return c
}

// FreeWindows returns the free gaps of req.Busy over [now, deadline), or
// over [now, now+horizon) without a deadline. A deadline at or before now
// leaves no window.
func (c *Client) FreeWindows(req Request, now time.Time) ([]interval.Interval, error) {
	end := now.Add(c.horizon)
	if req.Deadline != nil {
		end = *req.Deadline
	}
	if !now.Before(end) {
		return nil, nil
	}
	window, err := interval.NewWindow(req.UserID, now, end)
	if err != nil {
		return nil, err
	}
	busy, err := interval.Merge(req.Busy)
	if err != nil {
		return nil, fmt.Errorf("scheduler: merge busy: %w", err)
	}
	return interval.FreeGaps(busy, window.Bounds)
}

// Schedule asks the oracle for a profile and slot and verifies the answer.
// It returns an error when the oracle is misconfigured or every attempt
// failed; an unusable slot is replaced by the fallback instead.
func (c *Client) Schedule(ctx context.Context, req Request) (Outcome, error) {
	now := c.now()
	req = inZone(req, now.Location())
	free, err := c.FreeWindows(req, now)
	if err != nil {
		return Outcome{}, err
	}

	log := c.log.With(zap.String("task", req.TaskID), zap.Int("free_slots", len(free)), zap.Bool("has_deadline", req.Deadline != nil))
	if len(free) == 0 {
		log.Info("no free window, skipping the oracle")
		level, block := estimateProfile(req)
		return fallback(c.plan(req, now, free, level, block)), nil
	}
	log.Info("planning task", zap.String("title", util.Truncate(req.Title, 200)))

	system := SystemPrompt(req.Wake, req.Sleep)
	user := UserPrompt(req, free)

	var proposal *Proposal
	attempts, err := c.retry.Do(ctx, c.oracle, system, user, func(raw string) error {
		p, err := decodeProposal(raw, now.Location())
		if err != nil {
			return err
		}
		proposal = p
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("schedule task %s: %w", req.TaskID, err)
	}
	log.Debug("oracle proposal",
		zap.Int("attempts", attempts),
		zap.String("level", string(proposal.ConcentrationLevel)),
		zap.Int("block_minutes", proposal.RecommendedBlockMinutes),
		zap.Bool("scheduled", proposal.Scheduling.IsScheduled),
	)

	profile := proposal.CognitiveProfile
	env := slotEnv{
		now:      now,
		deadline: req.Deadline,
		free:     free,
		busy:     req.Busy,
		block:    profile.Block(),
	}
	slot, reason := reconcile(proposal, env)
	if reason != "" {
		log.Info("oracle slot refused, using fallback", zap.String("reason", reason))
		out := fallback(c.plan(req, now, free, profile.ConcentrationLevel, profile.Block()))
		out.Profile = &profile
		out.Rejected = reason
		return out, nil
	}

	slot = interval.Interval{Start: slot.Start.In(now.Location()), End: slot.End.In(now.Location())}
	out := Outcome{
		IsScheduled: true,
		Slot:        &slot,
		Source:      SourceOracle,
		Message:     proposal.Scheduling.Message,
		Profile:     &profile,
	}
	out.Quality, out.Period = c.grade(req, slot, profile.ConcentrationLevel)
	annotateDeadline(&out, req.Deadline)
	return out, nil
}

// Fallback places the task without consulting the oracle. A nil profile
// uses the task's estimate, or an hour of medium-concentration work.
func (c *Client) Fallback(req Request, profile *CognitiveProfile) (Outcome, error) {
	now := c.now()
	req = inZone(req, now.Location())
	free, err := c.FreeWindows(req, now)
	if err != nil {
		return Outcome{}, err
	}
	level, block := estimateProfile(req)
	if profile != nil {
		level, block = profile.ConcentrationLevel, profile.Block()
	}
	out := fallback(c.plan(req, now, free, level, block))
	out.Profile = profile
	return out, nil
}

func (c *Client) plan(req Request, now time.Time, free []interval.Interval, level biorhythm.Level, d time.Duration) plan {
	return plan{
		req:      req,
		now:      now,
		lead:     c.leadTime,
		horizon:  c.horizon,
		free:     free,
		level:    level,
		duration: d,
	}
}

// grade rates an accepted slot by the best biorhythm period containing it.
// Wake and sleep are read in the slot's location.
func (c *Client) grade(req Request, slot interval.Interval, level biorhythm.Level) (Quality, string) {
	day := interval.Interval{Start: slot.Start.Add(-24 * time.Hour), End: slot.End.Add(24 * time.Hour)}
	if p, ok := biorhythm.Classify(slot, biorhythm.PeriodsBetween(day, req.Wake, req.Sleep, level)); ok {
		return qualityOf(p.Priority), p.Name
	}
	for _, span := range biorhythm.WakingSpans(day, req.Wake, req.Sleep) {
		if span.Contains(slot) {
			return QualityAcceptable, ""
		}
	}
	return QualityPoor, ""
}

func estimateProfile(req Request) (biorhythm.Level, time.Duration) {
	if d, err := util.ParseDuration(req.Estimate); err == nil && d > 0 {
		return biorhythm.Medium, d
	}
	return biorhythm.Medium, defaultBlock
}

// inZone expresses every instant of req in loc, the zone wake and sleep
// are read in.
func inZone(req Request, loc *time.Location) Request {
	req.CreatedAt = req.CreatedAt.In(loc)
	if req.Deadline != nil {
		d := req.Deadline.In(loc)
		req.Deadline = &d
	}
	busy := make([]interval.Interval, len(req.Busy))
	for i, b := range req.Busy {
		busy[i] = interval.Interval{Start: b.Start.In(loc), End: b.End.In(loc)}
	}
	req.Busy = busy
	return req
}
