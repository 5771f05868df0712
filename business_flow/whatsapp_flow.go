package businessflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
)

// WhatsAppFlow exposes the channel state and direct messaging to the CRM
type WhatsAppFlow interface {
	Status(ctx context.Context) (*dto.WhatsAppStatusResponse, error)
	Number(ctx context.Context) (*dto.WhatsAppNumberResponse, error)
	SendMessage(ctx context.Context, req *dto.SendMessageRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error)
	MarkRead(ctx context.Context, req *dto.MarkReadRequest, metadata *ClientMetadata) error
}

// WhatsAppFlowImpl implements WhatsAppFlow
type WhatsAppFlowImpl struct {
	whatsapp    services.WhatsAppService
	leadRepo    repository.LeadRepository
	messageRepo repository.LeadMessageRepository
	sendTimeout time.Duration
	logger      *logrus.Entry
	now         func() time.Time
}

func NewWhatsAppFlow(
	whatsapp services.WhatsAppService,
	leadRepo repository.LeadRepository,
	messageRepo repository.LeadMessageRepository,
	sendTimeout time.Duration,
	logger *logrus.Entry,
) WhatsAppFlow {
	if sendTimeout <= 0 {
		sendTimeout = utils.SendTimeout
	}
	return &WhatsAppFlowImpl{
		whatsapp:    whatsapp,
		leadRepo:    leadRepo,
		messageRepo: messageRepo,
		sendTimeout: sendTimeout,
		logger:      logger,
		now:         utils.UTCNow,
	}
}

func (f *WhatsAppFlowImpl) Status(ctx context.Context) (*dto.WhatsAppStatusResponse, error) {
	status := f.whatsapp.Status()
	resp := &dto.WhatsAppStatusResponse{Status: string(status)}
	if status == services.StatusQRAvailable {
		resp.QR = f.whatsapp.LatestQR()
	}
	return resp, nil
}

func (f *WhatsAppFlowImpl) Number(ctx context.Context) (*dto.WhatsAppNumberResponse, error) {
	phone := f.whatsapp.SessionPhone()
	if f.whatsapp.Status() != services.StatusConnected || phone == "" {
		return nil, ErrWhatsAppNotConnected
	}
	return &dto.WhatsAppNumberResponse{Phone: phone}, nil
}

func (f *WhatsAppFlowImpl) SendMessage(ctx context.Context, req *dto.SendMessageRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error) {
	if req == nil || req.LeadID == 0 {
		return nil, NewBusinessError("INVALID_REQUEST", "leadId is required", ErrLeadIDRequired)
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, NewBusinessError("INVALID_REQUEST", "message is required", ErrMessageRequired)
	}

	lead, err := f.leadRepo.ByID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}

	phone := utils.NormalizeDirectSendPhone(lead.Phone)
	if phone == "" {
		return nil, ErrLeadWithoutPhone
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()
	if err := f.whatsapp.SendText(sendCtx, phone, req.Message); err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			return nil, ErrWhatsAppNotConnected
		}
		return nil, NewBusinessError("SEND_FAILED", "Failed to send WhatsApp message", errors.Join(ErrSendFailed, err))
	}

	now := f.now()
	record := &models.LeadMessage{
		LeadID:    lead.ID,
		Content:   req.Message,
		Sender:    models.MessageSenderBusiness,
		Timestamp: now,
	}
	if err := f.messageRepo.Save(ctx, record); err != nil {
		return nil, NewBusinessError("MESSAGE_SAVE_FAILED", "Message sent but could not be recorded", err)
	}
	if err := f.leadRepo.RecordActivity(ctx, lead.ID, now, false); err != nil {
		return nil, NewBusinessError("LEAD_UPDATE_FAILED", "Message sent but lead activity could not be updated", err)
	}

	f.logger.WithFields(metadata.fields()).WithFields(logrus.Fields{
		"lead_id":    lead.ID,
		"message_id": record.ID,
	}).Info("direct message sent")

	return &dto.SendMessageResponse{
		LeadID:    lead.ID,
		Phone:     phone,
		MessageID: record.ID,
		SentAt:    utils.FormatUTC(now),
	}, nil
}

func (f *WhatsAppFlowImpl) MarkRead(ctx context.Context, req *dto.MarkReadRequest, metadata *ClientMetadata) error {
	if req == nil || req.LeadID == 0 {
		return NewBusinessError("INVALID_REQUEST", "leadId is required", ErrLeadIDRequired)
	}
	lead, err := f.leadRepo.ByID(ctx, req.LeadID)
	if err != nil {
		return NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return ErrLeadNotFound
	}
	if err := f.leadRepo.ResetUnread(ctx, lead.ID); err != nil {
		return NewBusinessError("LEAD_UPDATE_FAILED", "Failed to reset unread counter", err)
	}
	return nil
}
