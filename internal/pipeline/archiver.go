package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Archiver moves opportunity history past its retention window to cold
// storage.
type Archiver struct {
	blob      domain.Archiver
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver keeping retentionDays of history in the
// primary store.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Archiver{
		blob:      blob,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run archives everything detected before now minus the retention window and
// returns the number of rows moved.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.retention)

	n, err := a.blob.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pipeline: archive opportunities before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	a.logger.InfoContext(ctx, "pipeline: archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("archived", n),
	)
	return n, nil
}

// RunCron runs the archiver on a 5-field cron schedule
// ("minute hour day-of-month month day-of-week") until ctx is cancelled.
// Fields accept "*", single values, lists, ranges ("1-5") and steps ("*/15").
func (a *Archiver) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return fmt.Errorf("pipeline: archive cron %q: %w", expr, err)
	}
	a.logger.InfoContext(ctx, "pipeline: archiver cron started", slog.String("cron", expr))

	for {
		next, ok := sched.next(a.now())
		if !ok {
			return fmt.Errorf("pipeline: archive cron %q never fires", expr)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("pipeline: archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "pipeline: archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is the set of values a field matches; nil means any.
type cronField map[int]struct{}

func (f cronField) matches(v int) bool {
	if f == nil {
		return true
	}
	_, ok := f[v]
	return ok
}

type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

var cronBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	var parsed [5]cronField
	for i, raw := range fields {
		b := cronBounds[i]
		f, err := parseCronField(raw, b.min, b.max)
		if err != nil {
			return cronSchedule{}, fmt.Errorf("%s field: %w", b.name, err)
		}
		parsed[i] = f
	}
	return cronSchedule{parsed[0], parsed[1], parsed[2], parsed[3], parsed[4]}, nil
}

func parseCronField(raw string, lo, hi int) (cronField, error) {
	if raw == "*" {
		return nil, nil
	}
	out := make(cronField)
	for _, part := range strings.Split(raw, ",") {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("bad step %q", stepStr)
			}
			step = s
		}

		from, to := lo, hi
		if rng != "*" {
			a, b, isRange := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return nil, fmt.Errorf("bad value %q", a)
			}
			to = from
			if isRange {
				if to, err = strconv.Atoi(b); err != nil {
					return nil, fmt.Errorf("bad value %q", b)
				}
			} else if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%q outside %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			out[v] = struct{}{}
		}
	}
	return out, nil
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

// next returns the first matching minute strictly after after, searching up
// to one year ahead.
func (c cronSchedule) next(after time.Time) (time.Time, bool) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for ; t.Before(limit); t = t.Add(time.Minute) {
		if c.matches(t) {
			return t, true
		}
	}
	return time.Time{}, false
}
