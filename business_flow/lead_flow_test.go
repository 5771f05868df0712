package businessflow

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	testingutil "github.com/cantalab/leadflow/testing"
	"github.com/cantalab/leadflow/utils"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type leadFixture struct {
	leads     *testingutil.FakeLeadRepository
	messages  *testingutil.FakeLeadMessageRepository
	sequences *testingutil.FakeSequenceRepository
	advancer  *fakeAdvancer
	flow      LeadFlow
}

type fakeAdvancer struct {
	calls    []uint
	advanced bool
	err      error
	onCall   func(leadID uint)
}

func (a *fakeAdvancer) AdvanceLead(ctx context.Context, leadID uint) (bool, error) {
	a.calls = append(a.calls, leadID)
	if a.onCall != nil {
		a.onCall(leadID)
	}
	return a.advanced, a.err
}

func newLeadFixture() *leadFixture {
	logger, _ := newTestLogger()
	fx := &leadFixture{
		leads:    testingutil.NewFakeLeadRepository(),
		messages: testingutil.NewFakeLeadMessageRepository(),
		sequences: testingutil.NewFakeSequenceRepository(
			testingutil.NewSequence("NuevoLead", models.SequenceStep{Type: models.StepTypeText, Content: "Hola {{nombre}}"}),
		),
		advancer: &fakeAdvancer{advanced: true},
	}
	flow := NewLeadFlow(fx.leads, fx.messages, fx.sequences, fx.advancer, logger).(*LeadFlowImpl)
	flow.now = func() time.Time { return fixedNow }
	fx.flow = flow
	return fx
}

func TestLeadFlow_ListLeads(t *testing.T) {
	ctx := context.Background()
	fx := newLeadFixture()
	for i := 0; i < 5; i++ {
		state := "nuevo"
		if i%2 == 1 {
			state = "cliente"
		}
		require.NoError(t, fx.leads.Save(ctx, &models.Lead{Phone: testingutil.RandomPhone(), State: state, Labels: pq.StringArray{"NuevoLead"}}))
	}

	t.Run("FirstPageNewestFirst", func(t *testing.T) {
		resp, err := fx.flow.ListLeads(ctx, &dto.ListLeadsRequest{PageRequest: dto.PageRequest{Page: 1, PageSize: 2}})
		require.NoError(t, err)
		assert.Equal(t, int64(5), resp.Total)
		require.Len(t, resp.Leads, 2)
		assert.Equal(t, uint(5), resp.Leads[0].ID)
		assert.Equal(t, uint(4), resp.Leads[1].ID)
		assert.Equal(t, uint(1), resp.Page)
	})

	t.Run("SecondPage", func(t *testing.T) {
		resp, err := fx.flow.ListLeads(ctx, &dto.ListLeadsRequest{PageRequest: dto.PageRequest{Page: 2, PageSize: 2}})
		require.NoError(t, err)
		require.Len(t, resp.Leads, 2)
		assert.Equal(t, uint(3), resp.Leads[0].ID)
		assert.Equal(t, uint(2), resp.Page)
	})

	t.Run("FilterByState", func(t *testing.T) {
		resp, err := fx.flow.ListLeads(ctx, &dto.ListLeadsRequest{State: utils.ToPtr("cliente")})
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)
		for _, lead := range resp.Leads {
			assert.Equal(t, "cliente", lead.State)
		}
	})
}

func TestLeadFlow_ListMessages(t *testing.T) {
	ctx := context.Background()
	fx := newLeadFixture()
	lead := &models.Lead{Phone: "5215512345678"}
	require.NoError(t, fx.leads.Save(ctx, lead))
	for i, sender := range []models.MessageSender{models.MessageSenderLead, models.MessageSenderBusiness, models.MessageSenderSystem} {
		require.NoError(t, fx.messages.Save(ctx, &models.LeadMessage{
			LeadID:    lead.ID,
			Content:   string(sender),
			Sender:    sender,
			Timestamp: fixedNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	resp, err := fx.flow.ListMessages(ctx, &dto.ListLeadMessagesRequest{LeadID: lead.ID})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "lead", resp.Messages[0].Sender)
	assert.Equal(t, "system", resp.Messages[2].Sender)
	assert.Equal(t, "2025-05-10T12:02:00Z", resp.Messages[2].Timestamp)

	_, err = fx.flow.ListMessages(ctx, &dto.ListLeadMessagesRequest{LeadID: 99})
	assert.True(t, IsLeadNotFound(err))
}

func TestLeadFlow_Enroll(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendsEnrollmentStartingNow", func(t *testing.T) {
		fx := newLeadFixture()
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, lead.SetEnrollments(nil))
		require.NoError(t, fx.leads.Save(ctx, lead))

		resp, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead"}, nil)
		require.NoError(t, err)
		require.Len(t, resp.Lead.ActiveSequences, 1)
		assert.Equal(t, "NuevoLead", resp.Lead.ActiveSequences[0].Trigger)
		assert.Equal(t, "2025-05-10T12:00:00Z", resp.Lead.ActiveSequences[0].StartTime)
		assert.Equal(t, 0, resp.Lead.ActiveSequences[0].Index)
	})

	t.Run("ExplicitStartTime", func(t *testing.T) {
		fx := newLeadFixture()
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		resp, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead", StartTime: utils.ToPtr("2025-05-01T08:30:00Z")}, nil)
		require.NoError(t, err)
		require.Len(t, resp.Lead.ActiveSequences, 1)
		assert.Equal(t, "2025-05-01T08:30:00Z", resp.Lead.ActiveSequences[0].StartTime)
	})

	t.Run("Errors", func(t *testing.T) {
		fx := newLeadFixture()
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		_, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "Inexistente"}, nil)
		assert.True(t, IsSequenceNotFound(err))

		_, err = fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: 404, Trigger: "NuevoLead"}, nil)
		assert.True(t, IsLeadNotFound(err))

		_, err = fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead", StartTime: utils.ToPtr("mañana")}, nil)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "INVALID_START_TIME", be.Code)

		stored, _ := fx.leads.ByID(ctx, lead.ID)
		enrollments, _ := stored.Enrollments()
		assert.Empty(t, enrollments)
		assert.Empty(t, fx.advancer.calls)
	})

	t.Run("SendNowAdvancesTheLead", func(t *testing.T) {
		fx := newLeadFixture()
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, fx.leads.Save(ctx, lead))
		fx.advancer.onCall = func(leadID uint) {
			stored, _ := fx.leads.ByID(ctx, leadID)
			enrollments, _ := stored.Enrollments()
			require.Len(t, enrollments, 1)
			enrollments[0].Index = 1
			require.NoError(t, stored.SetEnrollments(enrollments))
			require.NoError(t, fx.leads.UpdateActiveSequences(ctx, leadID, stored.ActiveSequences))
		}

		resp, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead", SendNow: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint{lead.ID}, fx.advancer.calls)
		assert.True(t, resp.AdvancedNow)
		require.Len(t, resp.Lead.ActiveSequences, 1)
		assert.Equal(t, 1, resp.Lead.ActiveSequences[0].Index)
	})

	t.Run("WithoutSendNowLeavesItToTheTick", func(t *testing.T) {
		fx := newLeadFixture()
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		resp, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead"}, nil)
		require.NoError(t, err)
		assert.Empty(t, fx.advancer.calls)
		assert.False(t, resp.AdvancedNow)
	})

	t.Run("AdvanceFailureKeepsEnrollment", func(t *testing.T) {
		fx := newLeadFixture()
		fx.advancer.advanced = false
		fx.advancer.err = errors.New("whatsapp not connected")
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		resp, err := fx.flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead", SendNow: true}, nil)
		require.NoError(t, err)
		assert.False(t, resp.AdvancedNow)
		require.Len(t, resp.Lead.ActiveSequences, 1)
		assert.Equal(t, 0, resp.Lead.ActiveSequences[0].Index)
	})

	t.Run("NilAdvancerIgnoresSendNow", func(t *testing.T) {
		logger, _ := newTestLogger()
		leads := testingutil.NewFakeLeadRepository()
		sequences := testingutil.NewFakeSequenceRepository(testingutil.NewSequence("NuevoLead", models.SequenceStep{Type: models.StepTypeText, Content: "Hola"}))
		flow := NewLeadFlow(leads, testingutil.NewFakeLeadMessageRepository(), sequences, nil, logger)
		lead := &models.Lead{Phone: "5215512345678"}
		require.NoError(t, leads.Save(ctx, lead))

		resp, err := flow.Enroll(ctx, &dto.EnrollLeadRequest{LeadID: lead.ID, Trigger: "NuevoLead", SendNow: true}, nil)
		require.NoError(t, err)
		assert.False(t, resp.AdvancedNow)
	})
}

func TestLeadFlow_ExportLeads(t *testing.T) {
	ctx := context.Background()
	fx := newLeadFixture()

	first := &models.Lead{Phone: "5215511111111", Name: "Ana", State: "nuevo", Labels: pq.StringArray{"NuevoLead", "VIP"}}
	require.NoError(t, first.SetEnrollments([]models.SequenceEnrollment{{Trigger: "NuevoLead", StartTime: fixedNow, Index: 2}}))
	require.NoError(t, fx.leads.Save(ctx, first))
	require.NoError(t, fx.leads.Save(ctx, &models.Lead{Phone: "5215522222222", Name: "Luis", State: "cliente"}))

	filename, data, err := fx.flow.ExportLeads(ctx, &dto.ListLeadsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "leads_20250510_120000.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "telefono", rows[0][2])
	assert.Equal(t, "5215511111111", rows[1][2])
	assert.Equal(t, "Ana", rows[1][3])
	assert.Equal(t, "NuevoLead, VIP", rows[1][6])
	assert.Equal(t, "NuevoLead#2", rows[1][7])
	assert.Equal(t, "Luis", rows[2][3])

	_, data, err = fx.flow.ExportLeads(ctx, &dto.ListLeadsRequest{State: utils.ToPtr("cliente")})
	require.NoError(t, err)
	filtered, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = filtered.Close() }()
	rows, err = filtered.GetRows("leads")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Luis", rows[1][3])
}
