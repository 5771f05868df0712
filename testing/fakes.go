package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ErrDuplicatePhone mirrors the uk_leads_phone constraint of the real schema
var ErrDuplicatePhone = errors.New("duplicate key value violates unique constraint \"uk_leads_phone\"")

// FakeFailures lets a test make a named fake method fail.
// Keys are method names such as "UpdateActiveSequences".
type FakeFailures struct {
	mu    sync.Mutex
	fails map[string]func(id uint) error
}

// FailOn makes method return err for every call
func (f *FakeFailures) FailOn(method string, err error) {
	f.FailWhen(method, func(uint) error { return err })
}

// FailWhen makes method consult fn with the target id
func (f *FakeFailures) FailWhen(method string, fn func(id uint) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails == nil {
		f.fails = make(map[string]func(uint) error)
	}
	f.fails[method] = fn
}

// ClearFailures removes every injected failure
func (f *FakeFailures) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = nil
}

func (f *FakeFailures) check(method string, id uint) error {
	f.mu.Lock()
	fn := f.fails[method]
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(id)
}

func window[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return []*T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// FakeLeadRepository is an in-memory repository.LeadRepository
type FakeLeadRepository struct {
	FakeFailures

	mu     sync.Mutex
	rows   map[uint]*models.Lead
	nextID uint
}

var _ repository.LeadRepository = (*FakeLeadRepository)(nil)

// NewFakeLeadRepository creates an empty lead store
func NewFakeLeadRepository() *FakeLeadRepository {
	return &FakeLeadRepository{rows: make(map[uint]*models.Lead)}
}

func cloneLead(l *models.Lead) *models.Lead {
	c := *l
	if l.Labels != nil {
		c.Labels = append(pq.StringArray{}, l.Labels...)
	}
	if l.ActiveSequences != nil {
		c.ActiveSequences = append(datatypes.JSON{}, l.ActiveSequences...)
	}
	if l.LastMessageAt != nil {
		t := *l.LastMessageAt
		c.LastMessageAt = &t
	}
	return &c
}

func (r *FakeLeadRepository) ByID(ctx context.Context, id uint) (*models.Lead, error) {
	if err := r.check("ByID", id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneLead(row), nil
}

func (r *FakeLeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	if err := r.check("Save", lead.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Phone == lead.Phone {
			return fmt.Errorf("failed to save entity: %w", ErrDuplicatePhone)
		}
	}
	if err := lead.BeforeCreate(nil); err != nil {
		return err
	}
	r.nextID++
	lead.ID = r.nextID
	r.rows[lead.ID] = cloneLead(lead)
	return nil
}

func (r *FakeLeadRepository) SaveBatch(ctx context.Context, leads []*models.Lead) error {
	for _, lead := range leads {
		if err := r.Save(ctx, lead); err != nil {
			return err
		}
	}
	return nil
}

func leadMatches(l *models.Lead, f models.LeadFilter) bool {
	switch {
	case f.ID != nil && l.ID != *f.ID:
		return false
	case f.UUID != nil && l.UUID != *f.UUID:
		return false
	case f.Phone != nil && l.Phone != *f.Phone:
		return false
	case f.State != nil && l.State != *f.State:
		return false
	case f.Label != nil && !l.HasLabel(*f.Label):
		return false
	case f.CreatedAfter != nil && !l.CreatedAt.After(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !l.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	if f.HasActiveSequences != nil {
		active := len(l.ActiveSequences) > 0 && string(l.ActiveSequences) != "null"
		if active != *f.HasActiveSequences {
			return false
		}
	}
	return true
}

func (r *FakeLeadRepository) sorted(f models.LeadFilter, ascending bool) []*models.Lead {
	out := make([]*models.Lead, 0, len(r.rows))
	for _, row := range r.rows {
		if leadMatches(row, f) {
			out = append(out, cloneLead(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ByFilter supports the default "id DESC" ordering and "id ASC"
func (r *FakeLeadRepository) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	if err := r.check("ByFilter", 0); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.sorted(filter, orderBy == "id ASC"), limit, offset), nil
}

func (r *FakeLeadRepository) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.sorted(filter, true))), nil
}

func (r *FakeLeadRepository) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *FakeLeadRepository) ByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	rows, err := r.ByFilter(ctx, models.LeadFilter{Phone: &phone}, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *FakeLeadRepository) ByUUID(ctx context.Context, uuidStr string) (*models.Lead, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.LeadFilter{UUID: &parsed}, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *FakeLeadRepository) ListWithActiveSequences(ctx context.Context, afterID uint, limit int) ([]*models.Lead, error) {
	if err := r.check("ListWithActiveSequences", afterID); err != nil {
		return nil, err
	}
	active := true
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(models.LeadFilter{HasActiveSequences: &active}, true)
	out := make([]*models.Lead, 0, len(all))
	for _, row := range all {
		if row.ID > afterID {
			out = append(out, row)
		}
	}
	return window(out, limit, 0), nil
}

// update applies fn to the stored row under the lock
func (r *FakeLeadRepository) update(method string, id uint, fn func(*models.Lead) error) error {
	if err := r.check(method, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("failed to update entity %d: record not found", id)
	}
	if err := fn(row); err != nil {
		return err
	}
	row.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *FakeLeadRepository) UpdateActiveSequences(ctx context.Context, leadID uint, raw datatypes.JSON) error {
	return r.update("UpdateActiveSequences", leadID, func(l *models.Lead) error {
		l.ActiveSequences = append(datatypes.JSON{}, raw...)
		return nil
	})
}

func (r *FakeLeadRepository) AppendEnrollment(ctx context.Context, leadID uint, enrollment models.SequenceEnrollment) error {
	return r.update("AppendEnrollment", leadID, func(l *models.Lead) error {
		var current []json.RawMessage
		if len(l.ActiveSequences) > 0 && string(l.ActiveSequences) != "null" {
			if err := json.Unmarshal(l.ActiveSequences, &current); err != nil {
				current = nil
			}
		}
		encoded, err := json.Marshal(enrollment)
		if err != nil {
			return err
		}
		for _, existing := range current {
			var e models.SequenceEnrollment
			if json.Unmarshal(existing, &e) == nil && e.Trigger == enrollment.Trigger &&
				e.Index == enrollment.Index && e.Completed == enrollment.Completed && e.StartTime.Equal(enrollment.StartTime) {
				return nil
			}
		}
		current = append(current, encoded)
		raw, err := json.Marshal(current)
		if err != nil {
			return err
		}
		l.ActiveSequences = datatypes.JSON(raw)
		return nil
	})
}

func (r *FakeLeadRepository) AddLabel(ctx context.Context, leadID uint, label string) error {
	return r.update("AddLabel", leadID, func(l *models.Lead) error {
		if !l.HasLabel(label) {
			l.Labels = append(l.Labels, label)
		}
		return nil
	})
}

func (r *FakeLeadRepository) RecordActivity(ctx context.Context, leadID uint, at time.Time, incrementUnread bool) error {
	return r.update("RecordActivity", leadID, func(l *models.Lead) error {
		ts := at.UTC()
		l.LastMessageAt = &ts
		if incrementUnread {
			l.UnreadCount++
		}
		return nil
	})
}

func (r *FakeLeadRepository) ResetUnread(ctx context.Context, leadID uint) error {
	return r.update("ResetUnread", leadID, func(l *models.Lead) error {
		l.UnreadCount = 0
		return nil
	})
}

// Put stores lead as-is, keeping its ID when set. Used to seed malformed rows.
func (r *FakeLeadRepository) Put(lead *models.Lead) *models.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = lead.BeforeCreate(nil)
	if lead.ID == 0 {
		r.nextID++
		lead.ID = r.nextID
	} else if lead.ID > r.nextID {
		r.nextID = lead.ID
	}
	r.rows[lead.ID] = cloneLead(lead)
	return lead
}

// FakeLeadMessageRepository is an in-memory repository.LeadMessageRepository
type FakeLeadMessageRepository struct {
	FakeFailures

	mu     sync.Mutex
	rows   []*models.LeadMessage
	nextID uint
}

var _ repository.LeadMessageRepository = (*FakeLeadMessageRepository)(nil)

// NewFakeLeadMessageRepository creates an empty message store
func NewFakeLeadMessageRepository() *FakeLeadMessageRepository {
	return &FakeLeadMessageRepository{}
}

func (r *FakeLeadMessageRepository) ByID(ctx context.Context, id uint) (*models.LeadMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			c := *row
			return &c, nil
		}
	}
	return nil, nil
}

func (r *FakeLeadMessageRepository) Save(ctx context.Context, msg *models.LeadMessage) error {
	if err := r.check("Save", msg.LeadID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := msg.BeforeCreate(nil); err != nil {
		return err
	}
	r.nextID++
	msg.ID = r.nextID
	c := *msg
	r.rows = append(r.rows, &c)
	return nil
}

func (r *FakeLeadMessageRepository) SaveBatch(ctx context.Context, msgs []*models.LeadMessage) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeLeadMessageRepository) filtered(f models.LeadMessageFilter) []*models.LeadMessage {
	out := make([]*models.LeadMessage, 0)
	for _, row := range r.rows {
		switch {
		case f.ID != nil && row.ID != *f.ID:
			continue
		case f.LeadID != nil && row.LeadID != *f.LeadID:
			continue
		case f.Sender != nil && row.Sender != *f.Sender:
			continue
		case f.After != nil && !row.Timestamp.After(*f.After):
			continue
		case f.Before != nil && !row.Timestamp.Before(*f.Before):
			continue
		}
		c := *row
		out = append(out, &c)
	}
	return out
}

// ByFilter returns newest first unless orderBy starts with "timestamp ASC"
func (r *FakeLeadMessageRepository) ByFilter(ctx context.Context, filter models.LeadMessageFilter, orderBy string, limit, offset int) ([]*models.LeadMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.filtered(filter)
	if orderBy == "" || orderBy == "id DESC" {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	}
	return window(rows, limit, offset), nil
}

func (r *FakeLeadMessageRepository) Count(ctx context.Context, filter models.LeadMessageFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filtered(filter))), nil
}

func (r *FakeLeadMessageRepository) Exists(ctx context.Context, filter models.LeadMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *FakeLeadMessageRepository) ListByLead(ctx context.Context, leadID uint, limit, offset int) ([]*models.LeadMessage, error) {
	return r.ByFilter(ctx, models.LeadMessageFilter{LeadID: &leadID}, "timestamp ASC, id ASC", limit, offset)
}

// All returns every stored message in insertion order
func (r *FakeLeadMessageRepository) All() []*models.LeadMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filtered(models.LeadMessageFilter{})
}

// FakeSequenceRepository is an in-memory repository.SequenceRepository
type FakeSequenceRepository struct {
	FakeFailures

	mu     sync.Mutex
	rows   map[string]*models.Sequence
	nextID uint
}

var _ repository.SequenceRepository = (*FakeSequenceRepository)(nil)

// NewFakeSequenceRepository creates a store seeded with sequences
func NewFakeSequenceRepository(seed ...*models.Sequence) *FakeSequenceRepository {
	r := &FakeSequenceRepository{rows: make(map[string]*models.Sequence)}
	for _, s := range seed {
		_ = r.Upsert(context.Background(), s)
	}
	return r
}

// NewSequence builds a definition with the given steps
func NewSequence(trigger string, steps ...models.SequenceStep) *models.Sequence {
	return &models.Sequence{Trigger: trigger, Steps: datatypes.NewJSONSlice(steps)}
}

func cloneSequence(s *models.Sequence) *models.Sequence {
	c := *s
	c.Steps = append(datatypes.JSONSlice[models.SequenceStep]{}, s.Steps...)
	return &c
}

func (r *FakeSequenceRepository) ByID(ctx context.Context, id uint) (*models.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			return cloneSequence(row), nil
		}
	}
	return nil, nil
}

func (r *FakeSequenceRepository) ByTrigger(ctx context.Context, trigger string) (*models.Sequence, error) {
	if err := r.check("ByTrigger", 0); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[trigger]
	if !ok {
		return nil, nil
	}
	return cloneSequence(row), nil
}

func (r *FakeSequenceRepository) Save(ctx context.Context, seq *models.Sequence) error {
	r.mu.Lock()
	_, exists := r.rows[seq.Trigger]
	r.mu.Unlock()
	if exists {
		return fmt.Errorf("failed to save entity: duplicate trigger %s", seq.Trigger)
	}
	return r.Upsert(ctx, seq)
}

func (r *FakeSequenceRepository) SaveBatch(ctx context.Context, seqs []*models.Sequence) error {
	for _, s := range seqs {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeSequenceRepository) Upsert(ctx context.Context, seq *models.Sequence) error {
	if err := r.check("Upsert", seq.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := utils.UTCNow()
	if existing, ok := r.rows[seq.Trigger]; ok {
		seq.ID = existing.ID
		seq.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		seq.ID = r.nextID
		seq.CreatedAt = now
	}
	seq.UpdatedAt = now
	r.rows[seq.Trigger] = cloneSequence(seq)
	return nil
}

// UpsertAll applies every upsert or none; failures injected for Upsert abort the whole batch
func (r *FakeSequenceRepository) UpsertAll(ctx context.Context, seqs []*models.Sequence) error {
	if err := r.check("UpsertAll", 0); err != nil {
		return err
	}
	for _, seq := range seqs {
		if err := r.check("Upsert", seq.ID); err != nil {
			return err
		}
	}
	for _, seq := range seqs {
		if err := r.Upsert(ctx, seq); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeSequenceRepository) list(f models.SequenceFilter) []*models.Sequence {
	out := make([]*models.Sequence, 0, len(r.rows))
	for _, row := range r.rows {
		if (f.ID != nil && row.ID != *f.ID) || (f.Trigger != nil && row.Trigger != *f.Trigger) {
			continue
		}
		out = append(out, cloneSequence(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *FakeSequenceRepository) ByFilter(ctx context.Context, filter models.SequenceFilter, orderBy string, limit, offset int) ([]*models.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.list(filter)
	if orderBy == "trigger ASC" {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Trigger < rows[j].Trigger })
	}
	return window(rows, limit, offset), nil
}

func (r *FakeSequenceRepository) Count(ctx context.Context, filter models.SequenceFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.list(filter))), nil
}

func (r *FakeSequenceRepository) Exists(ctx context.Context, filter models.SequenceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

// Delete removes the definition for trigger
func (r *FakeSequenceRepository) Delete(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, trigger)
}

// FakeLyricRequestRepository is an in-memory repository.LyricRequestRepository
type FakeLyricRequestRepository struct {
	FakeFailures

	mu     sync.Mutex
	rows   map[uint]*models.LyricRequest
	nextID uint
}

var _ repository.LyricRequestRepository = (*FakeLyricRequestRepository)(nil)

// NewFakeLyricRequestRepository creates an empty request store
func NewFakeLyricRequestRepository() *FakeLyricRequestRepository {
	return &FakeLyricRequestRepository{rows: make(map[uint]*models.LyricRequest)}
}

func cloneLyricRequest(r *models.LyricRequest) *models.LyricRequest {
	c := *r
	if r.Lyric != nil {
		c.Lyric = utils.ToPtr(*r.Lyric)
	}
	if r.LyricGeneratedAt != nil {
		c.LyricGeneratedAt = utils.ToPtr(*r.LyricGeneratedAt)
	}
	if r.SentAt != nil {
		c.SentAt = utils.ToPtr(*r.SentAt)
	}
	if r.LeadID != nil {
		c.LeadID = utils.ToPtr(*r.LeadID)
	}
	return &c
}

func (r *FakeLyricRequestRepository) ByID(ctx context.Context, id uint) (*models.LyricRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneLyricRequest(row), nil
}

func (r *FakeLyricRequestRepository) Save(ctx context.Context, req *models.LyricRequest) error {
	if err := r.check("Save", req.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := req.BeforeCreate(nil); err != nil {
		return err
	}
	r.nextID++
	req.ID = r.nextID
	r.rows[req.ID] = cloneLyricRequest(req)
	return nil
}

func (r *FakeLyricRequestRepository) SaveBatch(ctx context.Context, reqs []*models.LyricRequest) error {
	for _, req := range reqs {
		if err := r.Save(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (r *FakeLyricRequestRepository) list(f models.LyricRequestFilter, ascending bool) []*models.LyricRequest {
	out := make([]*models.LyricRequest, 0, len(r.rows))
	for _, row := range r.rows {
		switch {
		case f.ID != nil && row.ID != *f.ID:
			continue
		case f.UUID != nil && row.UUID != *f.UUID:
			continue
		case f.LeadID != nil && (row.LeadID == nil || *row.LeadID != *f.LeadID):
			continue
		case f.Status != nil && row.Status != *f.Status:
			continue
		}
		out = append(out, cloneLyricRequest(row))
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *FakeLyricRequestRepository) ByFilter(ctx context.Context, filter models.LyricRequestFilter, orderBy string, limit, offset int) ([]*models.LyricRequest, error) {
	if err := r.check("ByFilter", 0); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.list(filter, orderBy == "id ASC"), limit, offset), nil
}

func (r *FakeLyricRequestRepository) Count(ctx context.Context, filter models.LyricRequestFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.list(filter, true))), nil
}

func (r *FakeLyricRequestRepository) Exists(ctx context.Context, filter models.LyricRequestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *FakeLyricRequestRepository) ListByStatus(ctx context.Context, status models.LyricStatus, limit int) ([]*models.LyricRequest, error) {
	return r.ByFilter(ctx, models.LyricRequestFilter{Status: &status}, "id ASC", limit, 0)
}

func (r *FakeLyricRequestRepository) transition(method string, id uint, from models.LyricStatus, apply func(*models.LyricRequest)) (bool, error) {
	if err := r.check(method, id); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	apply(row)
	row.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *FakeLyricRequestRepository) MarkGenerated(ctx context.Context, id uint, lyric string, at time.Time) (bool, error) {
	return r.transition("MarkGenerated", id, models.LyricStatusPending, func(row *models.LyricRequest) {
		row.Status = models.LyricStatusGenerated
		row.Lyric = utils.ToPtr(lyric)
		row.LyricGeneratedAt = utils.ToPtr(at.UTC())
	})
}

func (r *FakeLyricRequestRepository) MarkSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.transition("MarkSent", id, models.LyricStatusGenerated, func(row *models.LyricRequest) {
		row.Status = models.LyricStatusSent
		row.SentAt = utils.ToPtr(at.UTC())
	})
}

// FakeAppConfigRepository is an in-memory repository.AppConfigRepository
type FakeAppConfigRepository struct {
	FakeFailures

	mu  sync.Mutex
	row *models.AppConfig
}

var _ repository.AppConfigRepository = (*FakeAppConfigRepository)(nil)

// NewFakeAppConfigRepository creates a store holding cfg; nil means the row is missing
func NewFakeAppConfigRepository(cfg *models.AppConfig) *FakeAppConfigRepository {
	r := &FakeAppConfigRepository{}
	if cfg != nil {
		c := *cfg
		c.ID = models.AppConfigSingletonID
		r.row = &c
	}
	return r
}

func (r *FakeAppConfigRepository) Get(ctx context.Context) (*models.AppConfig, error) {
	if err := r.check("Get", models.AppConfigSingletonID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.row == nil {
		return nil, nil
	}
	c := *r.row
	return &c, nil
}

func (r *FakeAppConfigRepository) Upsert(ctx context.Context, cfg *models.AppConfig) error {
	if err := r.check("Upsert", models.AppConfigSingletonID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.ID = models.AppConfigSingletonID
	cfg.UpdatedAt = utils.UTCNow()
	c := *cfg
	r.row = &c
	return nil
}
