package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// SequenceEngine advances leads through their enrolled sequences, one step per due enrollment per tick
type SequenceEngine struct {
	leads      repository.LeadRepository
	messages   repository.LeadMessageRepository
	sequences  repository.SequenceRepository
	dispatcher StepDispatcher
	discovery  LeadDiscovery
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewSequenceEngine(
	leads repository.LeadRepository,
	messages repository.LeadMessageRepository,
	sequences repository.SequenceRepository,
	dispatcher StepDispatcher,
	discovery LeadDiscovery,
	logger logrus.FieldLogger,
) *SequenceEngine {
	if discovery == nil {
		discovery = NewFullScanDiscovery(leads)
	}
	return &SequenceEngine{
		leads:      leads,
		messages:   messages,
		sequences:  sequences,
		dispatcher: dispatcher,
		discovery:  discovery,
		logger:     logger,
		now:        utils.UTCNow,
	}
}

// definitionCache resolves each trigger at most once per tick
type definitionCache struct {
	repo repository.SequenceRepository
	defs map[string]*models.Sequence
}

func (c *definitionCache) get(ctx context.Context, trigger string) (*models.Sequence, error) {
	if seq, ok := c.defs[trigger]; ok {
		return seq, nil
	}
	seq, err := c.repo.ByTrigger(ctx, trigger)
	if err != nil {
		return nil, err
	}
	c.defs[trigger] = seq
	return seq, nil
}

// Tick runs one advancement pass. Only a discovery failure is returned;
// per-lead and per-enrollment failures are logged and the pass moves on.
func (e *SequenceEngine) Tick(ctx context.Context) error {
	defs := &definitionCache{repo: e.sequences, defs: make(map[string]*models.Sequence)}
	processed := 0
	err := e.discovery.Each(ctx, func(ctx context.Context, lead *models.Lead) {
		processed++
		e.processLead(ctx, lead, defs)
	})
	if err != nil {
		return fmt.Errorf("failed to discover leads with active sequences: %w", err)
	}
	e.logger.WithField("leads", processed).Debug("sequence tick finished")
	return nil
}

// AdvanceLead evaluates the enrollments of a single lead the way a tick would
func (e *SequenceEngine) AdvanceLead(ctx context.Context, leadID uint) error {
	lead, err := e.leads.ByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %d: %w", leadID, err)
	}
	if lead == nil {
		return fmt.Errorf("lead %d not found", leadID)
	}
	e.processLead(ctx, lead, &definitionCache{repo: e.sequences, defs: make(map[string]*models.Sequence)})
	return nil
}

func (e *SequenceEngine) processLead(ctx context.Context, lead *models.Lead, defs *definitionCache) {
	log := e.logger.WithField("lead_id", lead.ID)

	enrollments, err := lead.Enrollments()
	if err != nil {
		log.WithError(err).Warn("skipping lead with malformed active sequences")
		return
	}
	if len(enrollments) == 0 {
		return
	}

	dirty := false
	for i := range enrollments {
		enrollment := &enrollments[i]
		if enrollment.Completed {
			dirty = true
			continue
		}
		if e.advance(ctx, lead, enrollment, defs, log.WithField("trigger", enrollment.Trigger)) {
			dirty = true
		}
	}
	if !dirty {
		return
	}

	remaining := make([]models.SequenceEnrollment, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if !enrollment.Completed {
			remaining = append(remaining, enrollment)
		}
	}
	raw, err := json.Marshal(remaining)
	if err != nil {
		log.WithError(err).Error("failed to encode active sequences")
		return
	}
	if err := e.leads.UpdateActiveSequences(ctx, lead.ID, datatypes.JSON(raw)); err != nil {
		log.WithError(err).Error("failed to persist active sequences")
	}
}

// advance evaluates one enrollment and reports whether it changed
func (e *SequenceEngine) advance(ctx context.Context, lead *models.Lead, enrollment *models.SequenceEnrollment, defs *definitionCache, log logrus.FieldLogger) bool {
	seq, err := defs.get(ctx, enrollment.Trigger)
	if err != nil {
		log.WithError(err).Error("failed to load sequence definition")
		return false
	}
	if seq == nil {
		log.Debug("no sequence defined for trigger")
		return false
	}

	if enrollment.Index >= len(seq.Steps) {
		enrollment.Completed = true
		log.WithField("steps", len(seq.Steps)).Info("sequence completed")
		return true
	}

	step := seq.Steps[enrollment.Index]
	if e.now().Before(enrollment.DueAt(step)) {
		return false
	}

	if err := e.dispatcher.Dispatch(ctx, lead, step); err != nil {
		log.WithError(err).WithField("index", enrollment.Index).Warn("sequence step dispatch failed; will retry next tick")
		return false
	}

	record := &models.LeadMessage{
		LeadID:    lead.ID,
		Content:   fmt.Sprintf("Se envió el %s de la secuencia %s", step.Type, enrollment.Trigger),
		Sender:    models.MessageSenderSystem,
		Timestamp: e.now(),
	}
	if err := e.messages.Save(ctx, record); err != nil {
		log.WithError(err).Error("failed to record sequence message")
	}

	enrollment.Index++
	log.WithField("index", enrollment.Index).Info("sequence step sent")
	return true
}
