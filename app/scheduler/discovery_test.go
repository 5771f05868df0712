package scheduler

import (
	"context"
	"testing"

	"github.com/cantalab/leadflow/models"
	testingutil "github.com/cantalab/leadflow/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDiscoveryLeads(t *testing.T) (*testingutil.FakeLeadRepository, []uint) {
	t.Helper()
	leads := testingutil.NewFakeLeadRepository()
	var active []uint
	for i := 0; i < 7; i++ {
		lead := &models.Lead{Phone: testingutil.RandomPhone()}
		if i%3 != 0 {
			require.NoError(t, lead.SetEnrollments([]models.SequenceEnrollment{{Trigger: "NuevoLead"}}))
		}
		require.NoError(t, leads.Save(context.Background(), lead))
		if i%3 != 0 {
			active = append(active, lead.ID)
		}
	}
	return leads, active
}

func collect(t *testing.T, d LeadDiscovery) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, d.Each(context.Background(), func(ctx context.Context, lead *models.Lead) {
		ids = append(ids, lead.ID)
	}))
	return ids
}

func TestLeadDiscovery(t *testing.T) {
	leads, active := seedDiscoveryLeads(t)

	tests := []struct {
		name     string
		pageSize int
	}{
		{name: "full scan", pageSize: 0},
		{name: "paged by one", pageSize: 1},
		{name: "paged by two", pageSize: 2},
		{name: "page larger than result", pageSize: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, active, collect(t, NewLeadDiscovery(leads, tt.pageSize)))
		})
	}
}

func TestLeadDiscovery_StopsOnCancel(t *testing.T) {
	leads, _ := seedDiscoveryLeads(t)
	ctx, cancel := context.WithCancel(context.Background())

	visited := 0
	err := NewPagedDiscovery(leads, 2).Each(ctx, func(ctx context.Context, lead *models.Lead) {
		visited++
		cancel()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, visited)
}
