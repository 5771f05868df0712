package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// LeadFlow serves the CRM views of leads and their conversations
type LeadFlow interface {
	ListLeads(ctx context.Context, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error)
	GetLead(ctx context.Context, leadID uint) (*dto.LeadDTO, error)
	ListMessages(ctx context.Context, req *dto.ListLeadMessagesRequest) (*dto.ListLeadMessagesResponse, error)
	Enroll(ctx context.Context, req *dto.EnrollLeadRequest, metadata *ClientMetadata) (*dto.EnrollLeadResponse, error)
	// ExportLeads renders the leads matching req as an XLSX workbook; paging fields are ignored
	ExportLeads(ctx context.Context, req *dto.ListLeadsRequest) (string, []byte, error)
}

// SequenceAdvancer evaluates one lead's enrollments outside the periodic tick.
// It reports false when the evaluation was deferred to the next tick.
type SequenceAdvancer interface {
	AdvanceLead(ctx context.Context, leadID uint) (bool, error)
}

// LeadFlowImpl implements LeadFlow
type LeadFlowImpl struct {
	leadRepo     repository.LeadRepository
	messageRepo  repository.LeadMessageRepository
	sequenceRepo repository.SequenceRepository
	advancer     SequenceAdvancer
	logger       *logrus.Entry
	now          func() time.Time
}

// NewLeadFlow builds the lead flow. advancer may be nil, in which case sendNow is ignored.
func NewLeadFlow(
	leadRepo repository.LeadRepository,
	messageRepo repository.LeadMessageRepository,
	sequenceRepo repository.SequenceRepository,
	advancer SequenceAdvancer,
	logger *logrus.Entry,
) LeadFlow {
	return &LeadFlowImpl{
		leadRepo:     leadRepo,
		messageRepo:  messageRepo,
		sequenceRepo: sequenceRepo,
		advancer:     advancer,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

func leadFilterFrom(req *dto.ListLeadsRequest) models.LeadFilter {
	filter := models.LeadFilter{}
	if req == nil {
		return filter
	}
	if req.State != nil && strings.TrimSpace(*req.State) != "" {
		filter.State = req.State
	}
	if req.Label != nil && strings.TrimSpace(*req.Label) != "" {
		filter.Label = req.Label
	}
	return filter
}

func (f *LeadFlowImpl) ListLeads(ctx context.Context, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error) {
	if req == nil {
		req = &dto.ListLeadsRequest{}
	}
	filter := leadFilterFrom(req)
	limit, offset := req.LimitOffset(defaultPageSize, maxPageSize)

	leads, err := f.leadRepo.ByFilter(ctx, filter, "", limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list leads", err)
	}
	total, err := f.leadRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to count leads", err)
	}

	out := make([]dto.LeadDTO, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadDTO(*lead))
	}
	return &dto.ListLeadsResponse{
		Leads:    out,
		Total:    total,
		Page:     uint(offset/limit) + 1,
		PageSize: uint(limit),
	}, nil
}

func (f *LeadFlowImpl) GetLead(ctx context.Context, leadID uint) (*dto.LeadDTO, error) {
	lead, err := f.getLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	out := ToLeadDTO(*lead)
	return &out, nil
}

func (f *LeadFlowImpl) getLead(ctx context.Context, leadID uint) (*models.Lead, error) {
	if leadID == 0 {
		return nil, ErrLeadNotFound
	}
	lead, err := f.leadRepo.ByID(ctx, leadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

func (f *LeadFlowImpl) ListMessages(ctx context.Context, req *dto.ListLeadMessagesRequest) (*dto.ListLeadMessagesResponse, error) {
	lead, err := f.getLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}
	limit, offset := req.LimitOffset(defaultPageSize, maxPageSize)
	messages, err := f.messageRepo.ListByLead(ctx, lead.ID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_MESSAGES_FAILED", "Failed to list messages", err)
	}
	out := make([]dto.LeadMessageDTO, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ToLeadMessageDTO(*msg))
	}
	return &dto.ListLeadMessagesResponse{LeadID: lead.ID, Messages: out}, nil
}

func (f *LeadFlowImpl) Enroll(ctx context.Context, req *dto.EnrollLeadRequest, metadata *ClientMetadata) (*dto.EnrollLeadResponse, error) {
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		return nil, NewBusinessError("INVALID_TRIGGER", "trigger is required", ErrInvalidSequence)
	}

	start := f.now()
	if req.StartTime != nil && *req.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			return nil, NewBusinessError("INVALID_START_TIME", "startTime must be RFC3339", err)
		}
		start = parsed
	}

	lead, err := f.getLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	seq, err := f.sequenceRepo.ByTrigger(ctx, trigger)
	if err != nil {
		return nil, NewBusinessError("SEQUENCE_LOOKUP_FAILED", "Failed to load sequence", err)
	}
	if seq == nil {
		return nil, ErrSequenceNotFound
	}

	if err := f.leadRepo.AppendEnrollment(ctx, lead.ID, models.NewEnrollment(trigger, start)); err != nil {
		return nil, NewBusinessError("ENROLL_FAILED", "Failed to enroll lead", err)
	}

	log := f.logger.WithFields(metadata.fields()).WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"trigger": trigger,
	})
	log.Info("lead enrolled in sequence")

	// The enrollment is stored; a failed immediate advance leaves it to the next tick.
	advanced := false
	if req.SendNow && f.advancer != nil {
		advanced, err = f.advancer.AdvanceLead(ctx, lead.ID)
		if err != nil {
			log.WithError(err).Warn("immediate sequence advance failed")
			advanced = false
		}
	}

	updated, err := f.getLead(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	return &dto.EnrollLeadResponse{
		Message:     "Lead enrolled successfully",
		Lead:        ToLeadDTO(*updated),
		AdvancedNow: advanced,
	}, nil
}

const exportBatchSize = 500

func (f *LeadFlowImpl) ExportLeads(ctx context.Context, req *dto.ListLeadsRequest) (string, []byte, error) {
	filter := leadFilterFrom(req)

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "leads"
	xl.SetSheetName(xl.GetSheetName(0), sheet)
	header := []string{"id", "uuid", "telefono", "nombre", "source", "estado", "etiquetas", "secuencias_activas", "unread_count", "last_message_at", "fecha_creacion"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	row := 2
	for offset := 0; ; offset += exportBatchSize {
		leads, err := f.leadRepo.ByFilter(ctx, filter, "id ASC", exportBatchSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to fetch leads", err)
		}
		for _, lead := range leads {
			record := exportRow(lead)
			cellRef, _ := excelize.CoordinatesToCellName(1, row)
			_ = xl.SetSheetRow(sheet, cellRef, &record)
			row++
		}
		if len(leads) < exportBatchSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("leads_%s.xlsx", f.now().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

func exportRow(lead *models.Lead) []string {
	lastMessage := ""
	if lead.LastMessageAt != nil {
		lastMessage = utils.FormatUTC(*lead.LastMessageAt)
	}
	active := ""
	if enrollments, err := lead.Enrollments(); err == nil {
		triggers := make([]string, 0, len(enrollments))
		for _, e := range enrollments {
			triggers = append(triggers, fmt.Sprintf("%s#%d", e.Trigger, e.Index))
		}
		active = strings.Join(triggers, ", ")
	}
	return []string{
		strconv.FormatUint(uint64(lead.ID), 10),
		lead.UUID.String(),
		lead.Phone,
		lead.Name,
		lead.Source,
		lead.State,
		strings.Join(lead.Labels, ", "),
		active,
		strconv.Itoa(lead.UnreadCount),
		lastMessage,
		utils.FormatUTC(lead.CreatedAt),
	}
}
