package scheduler

import (
	"context"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
)

// LeadDiscovery yields the leads that may have due sequence steps
type LeadDiscovery interface {
	// Each calls visit for every candidate lead and stops early when ctx is done
	Each(ctx context.Context, visit func(ctx context.Context, lead *models.Lead)) error
}

// FullScanDiscovery loads every lead with a non-null enrollment collection at once
type FullScanDiscovery struct {
	leads repository.LeadRepository
}

func NewFullScanDiscovery(leads repository.LeadRepository) *FullScanDiscovery {
	return &FullScanDiscovery{leads: leads}
}

func (d *FullScanDiscovery) Each(ctx context.Context, visit func(ctx context.Context, lead *models.Lead)) error {
	rows, err := d.leads.ListWithActiveSequences(ctx, 0, 0)
	if err != nil {
		return err
	}
	for _, lead := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		visit(ctx, lead)
	}
	return nil
}

// PagedDiscovery walks the same leads in id order, pageSize rows per query
type PagedDiscovery struct {
	leads    repository.LeadRepository
	pageSize int
}

func NewPagedDiscovery(leads repository.LeadRepository, pageSize int) *PagedDiscovery {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &PagedDiscovery{leads: leads, pageSize: pageSize}
}

func (d *PagedDiscovery) Each(ctx context.Context, visit func(ctx context.Context, lead *models.Lead)) error {
	var afterID uint
	for {
		rows, err := d.leads.ListWithActiveSequences(ctx, afterID, d.pageSize)
		if err != nil {
			return err
		}
		for _, lead := range rows {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			visit(ctx, lead)
			afterID = lead.ID
		}
		if len(rows) < d.pageSize {
			return nil
		}
	}
}

// NewLeadDiscovery picks the paged scan when pageSize is positive
func NewLeadDiscovery(leads repository.LeadRepository, pageSize int) LeadDiscovery {
	if pageSize > 0 {
		return NewPagedDiscovery(leads, pageSize)
	}
	return NewFullScanDiscovery(leads)
}
