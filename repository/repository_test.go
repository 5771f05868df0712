package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/repository"
	testingutil "github.com/cantalab/leadflow/testing"
	"github.com/cantalab/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestLeadRepository(t *testing.T) {
	db := testingutil.RequireDB(t)
	fixtures := testingutil.NewTestFixtures(db)
	repo := repository.NewLeadRepository(db.DB)
	ctx := context.Background()

	t.Run("ByPhone returns nil when missing", func(t *testing.T) {
		lead, err := repo.ByPhone(ctx, "5210000000000")
		require.NoError(t, err)
		assert.Nil(t, lead)
	})

	t.Run("ByPhone and ByUUID find the lead", func(t *testing.T) {
		created, err := fixtures.CreateTestLead("Ana", nil)
		require.NoError(t, err)

		byPhone, err := repo.ByPhone(ctx, created.Phone)
		require.NoError(t, err)
		require.NotNil(t, byPhone)
		assert.Equal(t, created.ID, byPhone.ID)

		byUUID, err := repo.ByUUID(ctx, created.UUID.String())
		require.NoError(t, err)
		require.NotNil(t, byUUID)
		assert.Equal(t, created.ID, byUUID.ID)
	})

	t.Run("AppendEnrollment is idempotent", func(t *testing.T) {
		created, err := fixtures.CreateTestLead("Beto", nil)
		require.NoError(t, err)

		enrollment := models.NewEnrollment("NuevoLead", time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
		require.NoError(t, repo.AppendEnrollment(ctx, created.ID, enrollment))
		require.NoError(t, repo.AppendEnrollment(ctx, created.ID, enrollment))

		lead, err := repo.ByID(ctx, created.ID)
		require.NoError(t, err)
		enrollments, err := lead.Enrollments()
		require.NoError(t, err)
		require.Len(t, enrollments, 1)
		assert.Equal(t, "NuevoLead", enrollments[0].Trigger)
		assert.True(t, enrollments[0].StartTime.Equal(enrollment.StartTime))
	})

	t.Run("ListWithActiveSequences skips leads without enrollments", func(t *testing.T) {
		require.NoError(t, db.ClearAllTables())

		_, err := fixtures.CreateTestLead("Sin secuencia", nil)
		require.NoError(t, err)
		enrolled, err := fixtures.CreateTestLead("Con secuencia", []models.SequenceEnrollment{
			models.NewEnrollment("NuevoLead", utils.UTCNow()),
		})
		require.NoError(t, err)

		rows, err := repo.ListWithActiveSequences(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, enrolled.ID, rows[0].ID)

		rows, err = repo.ListWithActiveSequences(ctx, enrolled.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("AddLabel does not duplicate", func(t *testing.T) {
		created, err := fixtures.CreateTestLead("Carla", nil)
		require.NoError(t, err)

		require.NoError(t, repo.AddLabel(ctx, created.ID, utils.LyricDeliveredLabel))
		require.NoError(t, repo.AddLabel(ctx, created.ID, utils.LyricDeliveredLabel))

		lead, err := repo.ByID(ctx, created.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{utils.DefaultLeadTrigger, utils.LyricDeliveredLabel}, []string(lead.Labels))

		label := utils.LyricDeliveredLabel
		count, err := repo.Count(ctx, models.LeadFilter{Label: &label})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, int64(1))
	})

	t.Run("RecordActivity and ResetUnread", func(t *testing.T) {
		created, err := fixtures.CreateTestLead("Diego", nil)
		require.NoError(t, err)

		at := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordActivity(ctx, created.ID, at, true))
		require.NoError(t, repo.RecordActivity(ctx, created.ID, at, true))
		require.NoError(t, repo.RecordActivity(ctx, created.ID, at, false))

		lead, err := repo.ByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, lead.UnreadCount)
		require.NotNil(t, lead.LastMessageAt)
		assert.True(t, lead.LastMessageAt.Equal(at))

		require.NoError(t, repo.ResetUnread(ctx, created.ID))
		lead, err = repo.ByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Zero(t, lead.UnreadCount)
	})
}

func TestLeadMessageRepository(t *testing.T) {
	db := testingutil.RequireDB(t)
	fixtures := testingutil.NewTestFixtures(db)
	repo := repository.NewLeadMessageRepository(db.DB)
	ctx := context.Background()

	lead, err := fixtures.CreateTestLead("Elena", nil)
	require.NoError(t, err)

	base := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	for i, sender := range []models.MessageSender{models.MessageSenderLead, models.MessageSenderSystem, models.MessageSenderBusiness} {
		require.NoError(t, repo.Save(ctx, &models.LeadMessage{
			LeadID:    lead.ID,
			Content:   string(sender),
			Sender:    sender,
			Timestamp: base.Add(-time.Duration(i) * time.Minute),
		}))
	}

	rows, err := repo.ListByLead(ctx, lead.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.MessageSenderBusiness, rows[0].Sender)
	assert.Equal(t, models.MessageSenderLead, rows[2].Sender)

	system := models.MessageSenderSystem
	count, err := repo.Count(ctx, models.LeadMessageFilter{LeadID: &lead.ID, Sender: &system})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSequenceRepository(t *testing.T) {
	db := testingutil.RequireDB(t)
	repo := repository.NewSequenceRepository(db.DB)
	ctx := context.Background()

	missing, err := repo.ByTrigger(ctx, "NoExiste")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Upsert(ctx, &models.Sequence{
		Trigger: "NuevoLead",
		Steps: datatypes.NewJSONSlice([]models.SequenceStep{
			{Type: models.StepTypeText, Content: "Hola {{nombre}}", Delay: 0},
		}),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.Sequence{
		Trigger: "NuevoLead",
		Name:    utils.ToPtr("Bienvenida"),
		Steps: datatypes.NewJSONSlice([]models.SequenceStep{
			{Type: models.StepTypeText, Content: "Hola", Delay: 0},
			{Type: models.StepTypeImage, Content: "https://cdn.example.com/a.jpg", Delay: 5},
		}),
	}))

	seq, err := repo.ByTrigger(ctx, "NuevoLead")
	require.NoError(t, err)
	require.NotNil(t, seq)
	require.NotNil(t, seq.Name)
	assert.Equal(t, "Bienvenida", *seq.Name)
	require.Len(t, seq.Steps, 2)
	assert.Equal(t, models.StepTypeImage, seq.Steps[1].Type)

	count, err := repo.Count(ctx, models.SequenceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	t.Run("UpsertAll rolls back the whole batch", func(t *testing.T) {
		err := repo.UpsertAll(ctx, []*models.Sequence{
			{Trigger: "Lote", Steps: datatypes.NewJSONSlice([]models.SequenceStep{{Type: models.StepTypeText, Content: "uno"}})},
			{Trigger: strings.Repeat("x", 200), Steps: datatypes.NewJSONSlice([]models.SequenceStep{})},
		})
		require.Error(t, err)

		missing, err := repo.ByTrigger(ctx, "Lote")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("UpsertAll writes every sequence", func(t *testing.T) {
		require.NoError(t, repo.UpsertAll(ctx, []*models.Sequence{
			{Trigger: "Lote", Steps: datatypes.NewJSONSlice([]models.SequenceStep{{Type: models.StepTypeText, Content: "uno"}})},
			{Trigger: "Promo", Steps: datatypes.NewJSONSlice([]models.SequenceStep{{Type: models.StepTypeForm, Content: "https://forms.example.com/?tel={{telefono}}"}})},
		}))

		count, err := repo.Count(ctx, models.SequenceFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestLyricRequestRepository(t *testing.T) {
	db := testingutil.RequireDB(t)
	fixtures := testingutil.NewTestFixtures(db)
	repo := repository.NewLyricRequestRepository(db.DB)
	ctx := context.Background()

	lead, err := fixtures.CreateTestLead("Fer", nil)
	require.NoError(t, err)
	pending, err := fixtures.CreateTestLyricRequest(lead, models.LyricStatusPending, 0)
	require.NoError(t, err)

	rows, err := repo.ListByStatus(ctx, models.LyricStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	// Sending before generation is rejected
	ok, err := repo.MarkSent(ctx, pending.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkGenerated(ctx, pending.ID, "**Letra**", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkGenerated(ctx, pending.ID, "otra", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkSent(ctx, pending.ID, now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.ByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LyricStatusSent, stored.Status)
	require.NotNil(t, stored.Lyric)
	assert.Equal(t, "**Letra**", *stored.Lyric)
	require.NotNil(t, stored.SentAt)
}

func TestAppConfigRepository(t *testing.T) {
	db := testingutil.RequireDB(t)
	repo := repository.NewAppConfigRepository(db.DB)
	ctx := context.Background()

	// Seeded by the migration
	cfg, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.AutoSaveLeads)
	assert.Equal(t, utils.DefaultLeadTrigger, cfg.DefaultTrigger)

	require.NoError(t, repo.Upsert(ctx, &models.AppConfig{AutoSaveLeads: true, DefaultTrigger: "Promo"}))
	require.NoError(t, repo.Upsert(ctx, &models.AppConfig{AutoSaveLeads: true, DefaultTrigger: "Promo", AutoEnroll: true}))

	cfg, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, models.AppConfigSingletonID, cfg.ID)
	assert.True(t, cfg.AutoEnroll)
	assert.Equal(t, "Promo", cfg.LeadTrigger(utils.DefaultLeadTrigger))
}
