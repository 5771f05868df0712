// Package scheduler drives the periodic CRM passes: sequence advancement,
// lyric generation and lyric delivery.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/repository"
	"github.com/sirupsen/logrus"
)

const (
	PassSequences     = "sequences"
	PassLyricGenerate = "lyric_generate"
	PassLyricSend     = "lyric_send"
)

// Dependencies groups the collaborators shared by the passes
type Dependencies struct {
	Leads     repository.LeadRepository
	Messages  repository.LeadMessageRepository
	Sequences repository.SequenceRepository
	Lyrics    repository.LyricRequestRepository
	Sender    MessageSender
	Generator services.LyricGenerator
	Lease     services.Lease
}

type scheduledPass struct {
	runner   *PassRunner
	interval time.Duration
}

// Scheduler ticks every enabled pass on its own interval
type Scheduler struct {
	passes []scheduledPass
	logger *logrus.Entry

	engine    *SequenceEngine
	pipeline  *LyricPipeline
	sequences *PassRunner
}

// NewScheduler wires the passes selected by cfg
func NewScheduler(cfg config.SchedulerConfig, lyricsCfg config.LyricsConfig, sendTimeout time.Duration, deps Dependencies, logger *logrus.Entry) *Scheduler {
	s := &Scheduler{logger: logger}

	dispatcher := NewMessageDispatcher(deps.Sender, sendTimeout, logger)
	s.engine = NewSequenceEngine(
		deps.Leads,
		deps.Messages,
		deps.Sequences,
		dispatcher,
		NewLeadDiscovery(deps.Leads, cfg.DiscoveryPage),
		logger.WithField("pass", PassSequences),
	)
	s.pipeline = NewLyricPipeline(deps.Lyrics, deps.Leads, deps.Messages, deps.Generator, deps.Sender, lyricsCfg, logger.WithField("pass", "lyrics"))

	add := func(name string, pass PassFunc, interval time.Duration) *PassRunner {
		if interval <= 0 {
			interval = time.Minute
		}
		runner := NewPassRunner(name, pass, deps.Lease, cfg.PassTimeout, cfg.LeaseTTL, logger)
		s.passes = append(s.passes, scheduledPass{runner: runner, interval: interval})
		return runner
	}
	if cfg.SequencesEnabled {
		s.sequences = add(PassSequences, s.engine.Tick, cfg.SequenceInterval)
	}
	if cfg.LyricsEnabled {
		add(PassLyricGenerate, s.pipeline.GeneratePass, cfg.GenerateInterval)
		add(PassLyricSend, s.pipeline.SendPass, cfg.SendInterval)
	}
	return s
}

// AdvanceLead runs the sequence step of one lead right away, under the sequences pass lease.
// It reports false when the sequences pass is disabled or busy; the next tick picks the lead up.
func (s *Scheduler) AdvanceLead(ctx context.Context, leadID uint) (bool, error) {
	if s.sequences == nil {
		return false, nil
	}
	var advanceErr error
	result := s.sequences.RunNow(ctx, func(ctx context.Context) error {
		advanceErr = s.engine.AdvanceLead(ctx, leadID)
		return advanceErr
	})
	switch result {
	case resultOK:
		return true, nil
	case resultError:
		if advanceErr == nil {
			advanceErr = fmt.Errorf("sequences pass unavailable for lead %d", leadID)
		}
		return false, advanceErr
	default:
		return false, nil
	}
}

// Start launches one loop per pass. Every pass runs once immediately, then on its ticker.
// The returned function stops the loops and waits for in-flight passes.
func (s *Scheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	for _, p := range s.passes {
		wg.Add(1)
		go func(p scheduledPass) {
			defer wg.Done()
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()

			p.runner.Run(ctx)

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.runner.Run(ctx)
				}
			}
		}(p)
		s.logger.WithFields(logrus.Fields{
			"pass":     p.runner.Name(),
			"interval": p.interval.String(),
		}).Info("scheduler pass started")
	}

	return func() {
		cancel()
		wg.Wait()
		s.logger.Info("scheduler stopped")
	}
}

// Passes lists the names of the enabled passes
func (s *Scheduler) Passes() []string {
	names := make([]string, 0, len(s.passes))
	for _, p := range s.passes {
		names = append(names, p.runner.Name())
	}
	return names
}
