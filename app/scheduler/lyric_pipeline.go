package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
)

const lyricSystemPrompt = "Eres un compositor creativo."

// DefaultLyricCooldown is the minimum time between generating a lyric and delivering it
const DefaultLyricCooldown = 15 * time.Minute

var errIncompleteRequest = errors.New("lyric request is missing phone, lyric or generation time")

// LyricPrompt builds the user prompt for a request
func LyricPrompt(req *models.LyricRequest) string {
	return "Escribe una letra de canción con lenguaje simple que su estructura sea verso 1, verso 2, coro, verso 3, verso 4 y coro. " +
		"Agrega titulo de la canción en negritas. No pongas datos personales que no se puedan confirmar. " +
		"Agrega un coro cantable y memorable. Solo responde con la letra de la canción sin texto adicional. " +
		fmt.Sprintf("Propósito: %s. Nombre: %s. Anecdotas o fraces: %s", req.Purpose, req.IncludeName, req.Anecdotes)
}

// LyricGreeting is the first delivery message
func LyricGreeting(firstName string) string {
	return fmt.Sprintf("Listo %s, ya terminé la letra para tu canción. *Léela y dime si te gusta.*", firstName)
}

// LyricPromo is the pricing and payment message closing the delivery
func LyricPromo(firstName, promoURL string) string {
	return fmt.Sprintf("%s el costo normal es de $1997 MXN pero tenemos la promocional esta semana de $897 MXN.\n\n", firstName) +
		"Puedes pagar en esta cuenta:\n\n🏦 Transferencia bancaria:\n" +
		"Cuenta: 4152 3143 2669 0826\nBanco: BBVA\nTitular: Iván Martínez Jiménez\n\n" +
		"🧾 Para facturar a esta:\n\nCLABE: 012814001155051514\nBanco: BBVA\nTitular: UDEL UNIVERSIDAD SAPI DE CV\n\n" +
		"🌐 Pago en línea o en dolares 🇺🇸 (45 USD):\n" +
		promoURL
}

// LyricPipeline generates lyrics for pending requests and delivers them after a cool-down
type LyricPipeline struct {
	requests  repository.LyricRequestRepository
	leads     repository.LeadRepository
	messages  repository.LeadMessageRepository
	generator services.LyricGenerator
	sender    MessageSender
	cfg       config.LyricsConfig
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewLyricPipeline(
	requests repository.LyricRequestRepository,
	leads repository.LeadRepository,
	messages repository.LeadMessageRepository,
	generator services.LyricGenerator,
	sender MessageSender,
	cfg config.LyricsConfig,
	logger logrus.FieldLogger,
) *LyricPipeline {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultLyricCooldown
	}
	return &LyricPipeline{
		requests:  requests,
		leads:     leads,
		messages:  messages,
		generator: generator,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		now:       utils.UTCNow,
	}
}

// GeneratePass writes a lyric for every pending request. Failed items stay pending.
func (p *LyricPipeline) GeneratePass(ctx context.Context) error {
	pending, err := p.requests.ListByStatus(ctx, models.LyricStatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to list pending lyric requests: %w", err)
	}
	p.logger.WithField("pending", len(pending)).Debug("lyric generate pass started")

	for _, req := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := p.logger.WithField("lyric_request_id", req.ID)

		lyric, err := p.generator.Generate(ctx, lyricSystemPrompt, LyricPrompt(req))
		if err == nil && strings.TrimSpace(lyric) == "" {
			err = services.ErrEmptyCompletion
		}
		if err != nil {
			lyricRequestsTotal.WithLabelValues("generate", resultError).Inc()
			log.WithError(err).Warn("lyric generation failed; request stays pending")
			continue
		}

		moved, err := p.requests.MarkGenerated(ctx, req.ID, strings.TrimSpace(lyric), p.now())
		if err != nil {
			lyricRequestsTotal.WithLabelValues("generate", resultError).Inc()
			log.WithError(err).Error("failed to store generated lyric")
			continue
		}
		if !moved {
			lyricRequestsTotal.WithLabelValues("generate", resultSkipped).Inc()
			log.Info("lyric request left pending state concurrently")
			continue
		}
		lyricRequestsTotal.WithLabelValues("generate", resultOK).Inc()
		log.Info("lyric generated")
	}
	return nil
}

// SendPass delivers generated lyrics whose cool-down has elapsed.
// A failure at any point leaves the request generated so the whole delivery is retried.
func (p *LyricPipeline) SendPass(ctx context.Context) error {
	generated, err := p.requests.ListByStatus(ctx, models.LyricStatusGenerated, 0)
	if err != nil {
		return fmt.Errorf("failed to list generated lyric requests: %w", err)
	}

	now := p.now()
	for _, req := range generated {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := p.logger.WithField("lyric_request_id", req.ID)

		if req.LeadPhone == "" || req.Lyric == nil || *req.Lyric == "" || req.LyricGeneratedAt == nil {
			lyricRequestsTotal.WithLabelValues("send", resultSkipped).Inc()
			log.WithError(errIncompleteRequest).Warn("skipping lyric request")
			continue
		}
		if now.Sub(*req.LyricGeneratedAt) < p.cfg.Cooldown {
			continue
		}

		if err := p.deliver(ctx, req); err != nil {
			lyricRequestsTotal.WithLabelValues("send", resultError).Inc()
			log.WithError(err).Warn("lyric delivery failed; will retry next tick")
			continue
		}
		lyricRequestsTotal.WithLabelValues("send", resultOK).Inc()
		log.Info("lyric delivered")
	}
	return nil
}

func (p *LyricPipeline) deliver(ctx context.Context, req *models.LyricRequest) error {
	phone := utils.DigitsOnly(req.LeadPhone)
	firstName := utils.FirstWord(req.RequesterName)

	greeting := LyricGreeting(firstName)
	if err := p.sendText(ctx, req, phone, greeting); err != nil {
		return err
	}
	if err := p.sendText(ctx, req, phone, *req.Lyric); err != nil {
		return err
	}
	if err := p.sender.SendMedia(ctx, phone, services.MediaKindVideo, p.cfg.VideoURL); err != nil {
		return fmt.Errorf("failed to send video: %w", err)
	}
	if err := p.record(ctx, req, &models.LeadMessage{
		MediaType: utils.ToPtr(string(services.MediaKindVideo)),
		MediaURL:  utils.ToPtr(p.cfg.VideoURL),
	}); err != nil {
		return err
	}
	if err := p.sendText(ctx, req, phone, LyricPromo(firstName, p.cfg.PromoURL)); err != nil {
		return err
	}

	if req.LeadID != nil {
		if err := p.leads.AddLabel(ctx, *req.LeadID, utils.LyricDeliveredLabel); err != nil {
			return fmt.Errorf("failed to label lead: %w", err)
		}
		enrollment := models.NewEnrollment(utils.LyricDeliveredTrigger, p.now())
		if err := p.leads.AppendEnrollment(ctx, *req.LeadID, enrollment); err != nil {
			return fmt.Errorf("failed to enroll lead: %w", err)
		}
	}

	moved, err := p.requests.MarkSent(ctx, req.ID, p.now())
	if err != nil {
		return fmt.Errorf("failed to mark lyric request sent: %w", err)
	}
	if !moved {
		p.logger.WithField("lyric_request_id", req.ID).Warn("lyric request was no longer generated when marking it sent")
	}
	return nil
}

func (p *LyricPipeline) sendText(ctx context.Context, req *models.LyricRequest, phone, text string) error {
	if err := p.sender.SendText(ctx, phone, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return p.record(ctx, req, &models.LeadMessage{Content: text})
}

// record appends a business message to the lead's history; requests without a lead are not recorded
func (p *LyricPipeline) record(ctx context.Context, req *models.LyricRequest, msg *models.LeadMessage) error {
	if req.LeadID == nil {
		return nil
	}
	msg.LeadID = *req.LeadID
	msg.Sender = models.MessageSenderBusiness
	msg.Timestamp = p.now()
	if err := p.messages.Save(ctx, msg); err != nil {
		return fmt.Errorf("failed to record lyric message: %w", err)
	}
	return nil
}
