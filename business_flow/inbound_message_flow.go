package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// InboundMessageFlow stores chat messages observed on the WhatsApp session
type InboundMessageFlow interface {
	HandleMessage(ctx context.Context, msg services.InboundMessage) error
	// Handler adapts the flow to the channel callback, logging failures
	Handler() services.InboundHandler
}

// InboundMessageFlowImpl implements InboundMessageFlow
type InboundMessageFlowImpl struct {
	leadRepo      repository.LeadRepository
	messageRepo   repository.LeadMessageRepository
	appConfigRepo repository.AppConfigRepository
	media         services.MediaStorage
	logger        *logrus.Entry
	now           func() time.Time
}

// NewInboundMessageFlow creates the inbound flow. media may be nil, in which case media bodies are not stored.
func NewInboundMessageFlow(
	leadRepo repository.LeadRepository,
	messageRepo repository.LeadMessageRepository,
	appConfigRepo repository.AppConfigRepository,
	media services.MediaStorage,
	logger *logrus.Entry,
) InboundMessageFlow {
	return &InboundMessageFlowImpl{
		leadRepo:      leadRepo,
		messageRepo:   messageRepo,
		appConfigRepo: appConfigRepo,
		media:         media,
		logger:        logger,
		now:           utils.UTCNow,
	}
}

func (f *InboundMessageFlowImpl) Handler() services.InboundHandler {
	return func(ctx context.Context, msg services.InboundMessage) {
		if err := f.HandleMessage(ctx, msg); err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"phone":   msg.Phone,
				"from_me": msg.FromMe,
			}).Error("failed to store inbound message")
		}
	}
}

func (f *InboundMessageFlowImpl) HandleMessage(ctx context.Context, msg services.InboundMessage) error {
	if msg.IsGroup {
		return nil
	}
	phone := utils.DigitsOnly(msg.Phone)
	if phone == "" {
		return nil
	}

	now := f.now()
	lead, err := f.leadRepo.ByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to find lead by phone: %w", err)
	}
	if lead == nil {
		lead, err = f.createLead(ctx, phone, msg.PushName, now)
		if err != nil {
			return err
		}
		if lead == nil {
			// auto save is off; unknown numbers are not tracked
			return nil
		}
	}

	sender := models.MessageSenderLead
	if msg.FromMe {
		sender = models.MessageSenderBusiness
	}

	record := &models.LeadMessage{
		LeadID:    lead.ID,
		Content:   msg.Text,
		Sender:    sender,
		Timestamp: now,
	}
	if msg.MediaType != "" {
		// media messages carry no text content
		record.Content = ""
		record.MediaType = utils.ToPtr(msg.MediaType)
		record.MediaURL = f.storeMedia(ctx, lead, msg)
	}

	if err := f.messageRepo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save message for lead %d: %w", lead.ID, err)
	}

	if err := f.leadRepo.RecordActivity(ctx, lead.ID, now, sender == models.MessageSenderLead); err != nil {
		return fmt.Errorf("failed to update lead %d activity: %w", lead.ID, err)
	}
	return nil
}

// createLead returns nil without error when auto saving is disabled
func (f *InboundMessageFlowImpl) createLead(ctx context.Context, phone, pushName string, now time.Time) (*models.Lead, error) {
	cfg, err := f.appConfigRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}
	if cfg == nil || !cfg.AutoSaveLeads {
		return nil, nil
	}

	trigger := cfg.LeadTrigger(utils.DefaultLeadTrigger)
	enrollments := []models.SequenceEnrollment{}
	if cfg.AutoEnroll {
		enrollments = append(enrollments, models.NewEnrollment(trigger, now))
	}

	lead := &models.Lead{
		Phone:         phone,
		Name:          pushName,
		Source:        utils.LeadSourceWhatsApp,
		State:         utils.LeadStateNew,
		Labels:        pq.StringArray{trigger},
		LastMessageAt: &now,
		CreatedAt:     now,
	}
	if err := lead.SetEnrollments(enrollments); err != nil {
		return nil, fmt.Errorf("failed to encode enrollments: %w", err)
	}

	if err := f.leadRepo.Save(ctx, lead); err != nil {
		// another message from the same number may have created it first
		existing, findErr := f.leadRepo.ByPhone(ctx, phone)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"lead_id":  lead.ID,
		"phone":    phone,
		"trigger":  trigger,
		"enrolled": cfg.AutoEnroll,
	}).Info("lead created from inbound message")
	return lead, nil
}

// storeMedia returns the public URL of the stored body, or nil when it could not be kept
func (f *InboundMessageFlowImpl) storeMedia(ctx context.Context, lead *models.Lead, msg services.InboundMessage) *string {
	if f.media == nil || len(msg.MediaData) == 0 {
		return nil
	}
	url, err := f.media.Save(ctx, msg.MediaData, msg.MimeType, msg.MediaType)
	if err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"lead_id":    lead.ID,
			"media_type": msg.MediaType,
			"bytes":      len(msg.MediaData),
		}).Warn("failed to store inbound media; saving message without url")
		return nil
	}
	return &url
}
