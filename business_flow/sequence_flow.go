package businessflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// SequenceFlow manages sequence definitions. Changes apply to enrolled leads on the next tick.
type SequenceFlow interface {
	ListSequences(ctx context.Context) (*dto.ListSequencesResponse, error)
	GetSequence(ctx context.Context, trigger string) (*dto.SequenceDTO, error)
	UpsertSequence(ctx context.Context, req *dto.SequenceDTO, metadata *ClientMetadata) (*dto.SequenceDTO, error)
	ImportYAML(ctx context.Context, data []byte, metadata *ClientMetadata) (*dto.ImportSequencesResponse, error)
	// SeedFromFile imports path when it exists; a missing file is not an error
	SeedFromFile(ctx context.Context, path string) (*dto.ImportSequencesResponse, error)
}

// SequenceFlowImpl implements SequenceFlow
type SequenceFlowImpl struct {
	sequenceRepo repository.SequenceRepository
	logger       *logrus.Entry
}

func NewSequenceFlow(sequenceRepo repository.SequenceRepository, logger *logrus.Entry) SequenceFlow {
	return &SequenceFlowImpl{sequenceRepo: sequenceRepo, logger: logger}
}

// sequenceDocument is the YAML layout. A bare list of sequences is accepted too.
type sequenceDocument struct {
	Sequences []dto.SequenceDTO `yaml:"sequences"`
}

func (f *SequenceFlowImpl) ListSequences(ctx context.Context) (*dto.ListSequencesResponse, error) {
	rows, err := f.sequenceRepo.ByFilter(ctx, models.SequenceFilter{}, "trigger ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_SEQUENCES_FAILED", "Failed to list sequences", err)
	}
	out := make([]dto.SequenceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToSequenceDTO(*row))
	}
	return &dto.ListSequencesResponse{Sequences: out}, nil
}

func (f *SequenceFlowImpl) GetSequence(ctx context.Context, trigger string) (*dto.SequenceDTO, error) {
	seq, err := f.sequenceRepo.ByTrigger(ctx, strings.TrimSpace(trigger))
	if err != nil {
		return nil, NewBusinessError("SEQUENCE_LOOKUP_FAILED", "Failed to load sequence", err)
	}
	if seq == nil {
		return nil, ErrSequenceNotFound
	}
	out := ToSequenceDTO(*seq)
	return &out, nil
}

func (f *SequenceFlowImpl) UpsertSequence(ctx context.Context, req *dto.SequenceDTO, metadata *ClientMetadata) (*dto.SequenceDTO, error) {
	seq, err := toSequenceModel(req)
	if err != nil {
		return nil, err
	}
	if err := f.sequenceRepo.Upsert(ctx, seq); err != nil {
		return nil, NewBusinessError("SEQUENCE_SAVE_FAILED", "Failed to save sequence", err)
	}

	f.logger.WithFields(metadata.fields()).WithFields(logrus.Fields{
		"trigger": seq.Trigger,
		"steps":   len(seq.Steps),
	}).Info("sequence saved")

	out := ToSequenceDTO(*seq)
	return &out, nil
}

func (f *SequenceFlowImpl) ImportYAML(ctx context.Context, data []byte, metadata *ClientMetadata) (*dto.ImportSequencesResponse, error) {
	defs, err := parseSequenceYAML(data)
	if err != nil {
		return nil, err
	}

	// validate everything before writing anything
	seqs := make([]*models.Sequence, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		seq, err := toSequenceModel(&defs[i])
		if err != nil {
			return nil, err
		}
		if seen[seq.Trigger] {
			return nil, NewBusinessErrorf("INVALID_SEQUENCE", "duplicate trigger %q in import", ErrInvalidSequence, seq.Trigger)
		}
		seen[seq.Trigger] = true
		seqs = append(seqs, seq)
	}

	if err := f.sequenceRepo.UpsertAll(ctx, seqs); err != nil {
		return nil, NewBusinessError("SEQUENCE_SAVE_FAILED", "Failed to save sequences", err)
	}
	triggers := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		triggers = append(triggers, seq.Trigger)
	}

	f.logger.WithFields(metadata.fields()).WithField("triggers", triggers).Info("sequences imported")

	return &dto.ImportSequencesResponse{
		Message:  "Sequences imported successfully",
		Imported: len(triggers),
		Triggers: triggers,
	}, nil
}

func (f *SequenceFlowImpl) SeedFromFile(ctx context.Context, path string) (*dto.ImportSequencesResponse, error) {
	if strings.TrimSpace(path) == "" {
		return &dto.ImportSequencesResponse{Triggers: []string{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.WithField("path", path).Warn("sequence seed file not found; skipping")
			return &dto.ImportSequencesResponse{Triggers: []string{}}, nil
		}
		return nil, fmt.Errorf("failed to read sequence seed file: %w", err)
	}
	return f.ImportYAML(ctx, data, nil)
}

func parseSequenceYAML(data []byte) ([]dto.SequenceDTO, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, NewBusinessError("INVALID_SEQUENCE", "import document is empty", ErrInvalidSequence)
	}

	var doc sequenceDocument
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Sequences) > 0 {
		return doc.Sequences, nil
	}

	var list []dto.SequenceDTO
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, NewBusinessError("INVALID_SEQUENCE", "import document is not valid sequence YAML", errors.Join(ErrInvalidSequence, err))
	}
	if len(list) == 0 {
		return nil, NewBusinessError("INVALID_SEQUENCE", "import document has no sequences", ErrInvalidSequence)
	}
	return list, nil
}

// toSequenceModel validates a definition and canonicalises its step types
func toSequenceModel(req *dto.SequenceDTO) (*models.Sequence, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_SEQUENCE", "sequence is required", ErrInvalidSequence)
	}
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		return nil, NewBusinessError("INVALID_SEQUENCE", "trigger is required", ErrInvalidSequence)
	}

	steps := make([]models.SequenceStep, 0, len(req.Messages))
	for i, m := range req.Messages {
		stepType, ok := models.StepType(m.Type).Canonical()
		if !ok {
			return nil, NewBusinessErrorf("INVALID_SEQUENCE", "sequence %s step %d has unknown type %q", ErrInvalidSequence, trigger, i, m.Type)
		}
		if m.Delay < 0 {
			return nil, NewBusinessErrorf("INVALID_SEQUENCE", "sequence %s step %d has a negative delay", ErrInvalidSequence, trigger, i)
		}
		if strings.TrimSpace(m.Content) == "" {
			return nil, NewBusinessErrorf("INVALID_SEQUENCE", "sequence %s step %d has no content", ErrInvalidSequence, trigger, i)
		}
		steps = append(steps, models.SequenceStep{Type: stepType, Content: m.Content, Delay: m.Delay})
	}

	var name *string
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		n := strings.TrimSpace(*req.Name)
		name = &n
	}
	return &models.Sequence{
		Trigger: trigger,
		Name:    name,
		Steps:   datatypes.NewJSONSlice(steps),
	}, nil
}
