package businessflow

import (
	"context"
	"strings"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
)

// LyricRequestFlow captures lyric requests for the generation pipeline and lists their progress
type LyricRequestFlow interface {
	CreateLyricRequest(ctx context.Context, req *dto.CreateLyricRequestRequest, metadata *ClientMetadata) (*dto.LyricRequestDTO, error)
	GetLyricRequest(ctx context.Context, id uint) (*dto.LyricRequestDTO, error)
	ListLyricRequests(ctx context.Context, req *dto.ListLyricRequestsRequest) (*dto.ListLyricRequestsResponse, error)
}

// LyricRequestFlowImpl implements LyricRequestFlow
type LyricRequestFlowImpl struct {
	lyricRepo repository.LyricRequestRepository
	leadRepo  repository.LeadRepository
	logger    *logrus.Entry
}

func NewLyricRequestFlow(lyricRepo repository.LyricRequestRepository, leadRepo repository.LeadRepository, logger *logrus.Entry) LyricRequestFlow {
	return &LyricRequestFlowImpl{lyricRepo: lyricRepo, leadRepo: leadRepo, logger: logger}
}

func (f *LyricRequestFlowImpl) CreateLyricRequest(ctx context.Context, req *dto.CreateLyricRequestRequest, metadata *ClientMetadata) (*dto.LyricRequestDTO, error) {
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return nil, NewBusinessError("INVALID_PURPOSE", "proposito is required", nil)
	}
	phone := utils.DigitsOnly(req.LeadPhone)
	if phone == "" {
		return nil, NewBusinessError("INVALID_PHONE", "leadPhone must contain digits", ErrLeadWithoutPhone)
	}

	var lead *models.Lead
	var err error
	if req.LeadID != nil && *req.LeadID != 0 {
		lead, err = f.leadRepo.ByID(ctx, *req.LeadID)
		if err != nil {
			return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
		}
		if lead == nil {
			return nil, ErrLeadNotFound
		}
	} else {
		// leadless requests are allowed; they are delivered but not recorded
		lead, err = f.leadRepo.ByPhone(ctx, phone)
		if err != nil {
			return nil, NewBusinessError("LEAD_LOOKUP_FAILED", "Failed to load lead", err)
		}
	}

	record := &models.LyricRequest{
		Purpose:       purpose,
		IncludeName:   strings.TrimSpace(req.IncludeName),
		Anecdotes:     strings.TrimSpace(req.Anecdotes),
		LeadPhone:     phone,
		RequesterName: strings.TrimSpace(req.RequesterName),
		Status:        models.LyricStatusPending,
	}
	if lead != nil {
		record.LeadID = utils.ToPtr(lead.ID)
	}

	if err := f.lyricRepo.Save(ctx, record); err != nil {
		return nil, NewBusinessError("LYRIC_REQUEST_SAVE_FAILED", "Failed to save lyric request", err)
	}

	f.logger.WithFields(metadata.fields()).WithFields(logrus.Fields{
		"lyric_request_id": record.ID,
		"has_lead":         record.LeadID != nil,
	}).Info("lyric request created")

	out := ToLyricRequestDTO(*record)
	return &out, nil
}

func (f *LyricRequestFlowImpl) GetLyricRequest(ctx context.Context, id uint) (*dto.LyricRequestDTO, error) {
	record, err := f.lyricRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("LYRIC_REQUEST_LOOKUP_FAILED", "Failed to load lyric request", err)
	}
	if record == nil {
		return nil, ErrLyricRequestNotFound
	}
	out := ToLyricRequestDTO(*record)
	return &out, nil
}

func (f *LyricRequestFlowImpl) ListLyricRequests(ctx context.Context, req *dto.ListLyricRequestsRequest) (*dto.ListLyricRequestsResponse, error) {
	if req == nil {
		req = &dto.ListLyricRequestsRequest{}
	}
	filter := models.LyricRequestFilter{}
	if req.Status != nil && *req.Status != "" {
		status := models.LyricStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_STATUS", "unknown status %q", ErrInvalidLyricStatus, *req.Status)
		}
		filter.Status = &status
	}

	limit, offset := req.LimitOffset(defaultPageSize, maxPageSize)
	rows, err := f.lyricRepo.ByFilter(ctx, filter, "", limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_LYRIC_REQUESTS_FAILED", "Failed to list lyric requests", err)
	}
	total, err := f.lyricRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_LYRIC_REQUESTS_FAILED", "Failed to count lyric requests", err)
	}

	out := make([]dto.LyricRequestDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToLyricRequestDTO(*row))
	}
	return &dto.ListLyricRequestsResponse{Requests: out, Total: total}, nil
}
