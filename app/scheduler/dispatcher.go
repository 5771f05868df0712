package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
)

// ErrMissingPhone is returned when a lead has no digits to address
var ErrMissingPhone = errors.New("lead has no phone")

// MessageSender is the part of the WhatsApp connection manager the scheduler needs.
// Keeping it narrow lets the passes run against a mock channel in tests.
type MessageSender interface {
	SendText(ctx context.Context, phone, text string) error
	SendMedia(ctx context.Context, phone string, kind services.MediaKind, url string) error
}

// StepDispatcher renders and sends one sequence step to a lead
type StepDispatcher interface {
	Dispatch(ctx context.Context, lead *models.Lead, step models.SequenceStep) error
}

// MessageDispatcher implements StepDispatcher over a MessageSender
type MessageDispatcher struct {
	sender  MessageSender
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewMessageDispatcher creates a dispatcher whose sends are bounded by timeout
func NewMessageDispatcher(sender MessageSender, timeout time.Duration, logger logrus.FieldLogger) *MessageDispatcher {
	if timeout <= 0 {
		timeout = utils.SendTimeout
	}
	return &MessageDispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Dispatch sends step to the lead's stored phone digits, without country code inference.
// A nil error means the step is done: sent, empty after rendering, or of an unknown type.
func (d *MessageDispatcher) Dispatch(ctx context.Context, lead *models.Lead, step models.SequenceStep) error {
	kind, ok := step.Type.Canonical()
	if !ok {
		d.logger.WithFields(logrus.Fields{
			"lead_id":   lead.ID,
			"step_type": step.Type,
		}).Warn("unknown sequence step type; nothing sent")
		dispatchTotal.WithLabelValues(resultUnknown, resultSkipped).Inc()
		return nil
	}

	phone := utils.DigitsOnly(lead.Phone)
	if phone == "" {
		dispatchTotal.WithLabelValues(string(kind), resultError).Inc()
		return ErrMissingPhone
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	switch kind {
	case models.StepTypeText:
		text := strings.TrimSpace(RenderPlaceholders(step.Content, lead.Attributes()))
		if text == "" {
			dispatchTotal.WithLabelValues(string(kind), resultSkipped).Inc()
			return nil
		}
		err = d.sender.SendText(ctx, phone, text)
	case models.StepTypeForm:
		text := RenderForm(step.Content, phone, lead.Name)
		if text == "" {
			dispatchTotal.WithLabelValues(string(kind), resultSkipped).Inc()
			return nil
		}
		err = d.sender.SendText(ctx, phone, text)
	case models.StepTypeAudio:
		err = d.sender.SendMedia(ctx, phone, services.MediaKindAudio, RenderPlaceholders(step.Content, lead.Attributes()))
	case models.StepTypeImage:
		err = d.sender.SendMedia(ctx, phone, services.MediaKindImage, RenderPlaceholders(step.Content, lead.Attributes()))
	case models.StepTypeVideo:
		err = d.sender.SendMedia(ctx, phone, services.MediaKindVideo, RenderPlaceholders(step.Content, lead.Attributes()))
	}

	if err != nil {
		dispatchTotal.WithLabelValues(string(kind), resultError).Inc()
		return fmt.Errorf("failed to send %s step: %w", kind, err)
	}
	dispatchTotal.WithLabelValues(string(kind), resultOK).Inc()
	return nil
}
