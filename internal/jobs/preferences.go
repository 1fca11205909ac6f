package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/storage"
)

// LearnerConfig controls how preferences are derived from recent use.
type LearnerConfig struct {
	Window    time.Duration // how far back interactions count
	Threshold int           // minimum uses before a skill is preferred
	Interval  time.Duration
	Workers   int
}

// LearnerSummary reports one pass.
type LearnerSummary struct {
	Senders int
	Updated int
}

// PreferenceLearner promotes each sender's most used skill to their
// preferred skill. Runs are idempotent.
type PreferenceLearner struct {
	store   storage.Store
	cfg     LearnerConfig
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	loop    periodic
}

func NewPreferenceLearner(store storage.Store, cfg LearnerConfig, log *zap.Logger, m *metrics.Metrics) *PreferenceLearner {
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &PreferenceLearner{
		store:   store,
		cfg:     cfg,
		log:     log.Named("learner"),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the learner's clock.
func (l *PreferenceLearner) WithClock(now func() time.Time) *PreferenceLearner {
	l.now = now
	return l
}

// Start runs the learner every Interval until Stop or ctx is done.
func (l *PreferenceLearner) Start(ctx context.Context) {
	if l.loop.start(ctx, l.cfg.Interval, l.tick) {
		l.log.Info("preference learner started", zap.Duration("interval", l.cfg.Interval))
	}
}

// Stop waits for an in-flight pass to finish.
func (l *PreferenceLearner) Stop() {
	l.loop.stop()
}

func (l *PreferenceLearner) tick(ctx context.Context) {
	sum, err := l.RunOnce(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.log.Error("preference learning failed", zap.Error(err))
		}
		return
	}
	l.log.Info("preferences refreshed", zap.Int("senders", sum.Senders), zap.Int("updated", sum.Updated))
}

// RunOnce recomputes usage and preference for every sender active in the window.
func (l *PreferenceLearner) RunOnce(ctx context.Context) (LearnerSummary, error) {
	now := l.now()
	interactions, err := l.store.ListInteractionsSince(ctx, now.Add(-l.cfg.Window))
	if err != nil {
		l.metrics.LearnerRun("error")
		return LearnerSummary{}, fmt.Errorf("list interactions: %w", err)
	}

	usage := tally(interactions)
	var updated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for sender, counts := range usage {
		g.Go(func() error {
			changed, err := l.update(gctx, sender, counts, now)
			if err != nil {
				return fmt.Errorf("sender %s: %w", sender, err)
			}
			if changed {
				updated.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.metrics.LearnerRun("error")
		return LearnerSummary{Senders: len(usage), Updated: int(updated.Load())}, err
	}

	l.metrics.LearnerRun("ok")
	return LearnerSummary{Senders: len(usage), Updated: int(updated.Load())}, nil
}

// tally counts uses per sender and skill. Interactions not credited to a
// known skill, or routed there by the sender's own memory, are ignored.
func tally(interactions []*models.Interaction) map[string]map[string]models.SkillUsage {
	out := make(map[string]map[string]models.SkillUsage)
	for _, in := range interactions {
		if !models.IsKnownDomain(in.Skill) || in.Source == models.SourceMemory {
			continue
		}
		perSkill, ok := out[in.Sender]
		if !ok {
			perSkill = make(map[string]models.SkillUsage)
			out[in.Sender] = perSkill
		}
		u := perSkill[in.Skill]
		u.Count++
		if in.At.After(u.LastUsedAt) {
			u.LastUsedAt = in.At
		}
		perSkill[in.Skill] = u
	}
	return out
}

// preferred picks the skill with the most uses at or above threshold.
// Ties go to the most recently used, then to the lexically smaller name.
func preferred(usage map[string]models.SkillUsage, threshold int) (string, bool) {
	best := ""
	var bu models.SkillUsage
	for skill, u := range usage {
		if u.Count < threshold {
			continue
		}
		switch {
		case best == "",
			u.Count > bu.Count,
			u.Count == bu.Count && u.LastUsedAt.After(bu.LastUsedAt),
			u.Count == bu.Count && u.LastUsedAt.Equal(bu.LastUsedAt) && skill < best:
			best, bu = skill, u
		}
	}
	return best, best != ""
}

func (l *PreferenceLearner) update(ctx context.Context, sender string, usage map[string]models.SkillUsage, now time.Time) (bool, error) {
	mem, err := l.store.GetUserMemory(ctx, sender)
	if errors.Is(err, storage.ErrNotFound) {
		mem = &models.UserMemory{Sender: sender}
	} else if err != nil {
		return false, err
	}

	previous := mem.PreferredSkill
	mem.Usage = usage
	if skill, ok := preferred(usage, l.cfg.Threshold); ok {
		mem.PreferredSkill = skill
	}
	mem.LastUpdated = now

	if err := l.store.SaveUserMemory(ctx, mem); err != nil {
		return false, err
	}
	if mem.PreferredSkill != previous {
		l.log.Debug("preference changed",
			zap.String("sender", sender),
			zap.String("from", previous),
			zap.String("to", mem.PreferredSkill))
		return true, nil
	}
	return false, nil
}
