package businessflow

import (
	"context"
	"strings"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/sirupsen/logrus"
)

// AppConfigFlow reads and updates the runtime switches used by the inbound handler
type AppConfigFlow interface {
	GetConfig(ctx context.Context) (*dto.AppConfigDTO, error)
	UpdateConfig(ctx context.Context, req *dto.AppConfigDTO, metadata *ClientMetadata) (*dto.AppConfigDTO, error)
}

// AppConfigFlowImpl implements AppConfigFlow
type AppConfigFlowImpl struct {
	appConfigRepo repository.AppConfigRepository
	logger        *logrus.Entry
}

func NewAppConfigFlow(appConfigRepo repository.AppConfigRepository, logger *logrus.Entry) AppConfigFlow {
	return &AppConfigFlowImpl{appConfigRepo: appConfigRepo, logger: logger}
}

func (f *AppConfigFlowImpl) GetConfig(ctx context.Context) (*dto.AppConfigDTO, error) {
	cfg, err := f.appConfigRepo.Get(ctx)
	if err != nil {
		return nil, NewBusinessError("APP_CONFIG_LOOKUP_FAILED", "Failed to load configuration", err)
	}
	out := ToAppConfigDTO(cfg)
	return &out, nil
}

func (f *AppConfigFlowImpl) UpdateConfig(ctx context.Context, req *dto.AppConfigDTO, metadata *ClientMetadata) (*dto.AppConfigDTO, error) {
	cfg := &models.AppConfig{
		AutoSaveLeads:  req.AutoSaveLeads,
		DefaultTrigger: strings.TrimSpace(req.DefaultTrigger),
		AutoEnroll:     req.AutoEnroll,
	}
	if err := f.appConfigRepo.Upsert(ctx, cfg); err != nil {
		return nil, NewBusinessError("APP_CONFIG_SAVE_FAILED", "Failed to save configuration", err)
	}

	f.logger.WithFields(metadata.fields()).WithFields(logrus.Fields{
		"auto_save_leads": cfg.AutoSaveLeads,
		"default_trigger": cfg.DefaultTrigger,
		"auto_enroll":     cfg.AutoEnroll,
	}).Info("app config updated")

	out := ToAppConfigDTO(cfg)
	return &out, nil
}
