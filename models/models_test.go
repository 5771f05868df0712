package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStepTypeCanonical(t *testing.T) {
	tests := []struct {
		in   StepType
		want StepType
		ok   bool
	}{
		{"text", StepTypeText, true},
		{"texto", StepTypeText, true},
		{"Formulario", StepTypeForm, true},
		{"imagen", StepTypeImage, true},
		{" video ", StepTypeVideo, true},
		{"audio", StepTypeAudio, true},
		{"sticker", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, ok := tt.in.Canonical()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequenceStepDelay(t *testing.T) {
	start := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	e := NewEnrollment("Bienvenida", start)
	assert.Equal(t, 0, e.Index)
	assert.False(t, e.Completed)

	step := SequenceStep{Type: StepTypeText, Content: "hola", Delay: 1.5}
	assert.Equal(t, 90*time.Second, step.DelayDuration())
	assert.Equal(t, start.Add(90*time.Second), e.DueAt(step))
}

func TestLeadEnrollments(t *testing.T) {
	t.Run("null column is empty", func(t *testing.T) {
		for _, raw := range []datatypes.JSON{nil, datatypes.JSON("null")} {
			l := &Lead{ActiveSequences: raw}
			got, err := l.Enrollments()
			require.NoError(t, err)
			assert.Empty(t, got)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		start := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
		l := &Lead{}
		require.NoError(t, l.SetEnrollments([]SequenceEnrollment{{Trigger: "A", StartTime: start, Index: 2}}))

		got, err := l.Enrollments()
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0].Trigger)
		assert.Equal(t, 2, got[0].Index)
		assert.True(t, start.Equal(got[0].StartTime))
	})

	t.Run("nil slice persists as empty array", func(t *testing.T) {
		l := &Lead{}
		require.NoError(t, l.SetEnrollments(nil))
		assert.Equal(t, "[]", string(l.ActiveSequences))
	})

	t.Run("malformed collection errors", func(t *testing.T) {
		l := &Lead{ID: 9, ActiveSequences: datatypes.JSON(`{"trigger":"A"}`)}
		_, err := l.Enrollments()
		assert.Error(t, err)
	})
}

func TestLeadBeforeCreate(t *testing.T) {
	l := &Lead{Phone: "5215512345678"}
	require.NoError(t, l.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, l.UUID)
	assert.NotNil(t, l.Labels)
	assert.False(t, l.CreatedAt.IsZero())
	assert.False(t, l.HasLabel("NuevoLead"))

	l.Labels = append(l.Labels, "NuevoLead")
	assert.True(t, l.HasLabel("NuevoLead"))
}

func TestLeadAttributes(t *testing.T) {
	l := &Lead{Phone: "5215512345678", Name: "Ana María", State: "nuevo"}
	attrs := l.Attributes()
	assert.Equal(t, "Ana María", attrs["nombre"])
	assert.Equal(t, "5215512345678", attrs["telefono"])
	_, hasID := attrs["id"]
	assert.False(t, hasID)
	_, hasCreated := attrs["fecha_creacion"]
	assert.False(t, hasCreated)
	assert.Equal(t, "0", attrs["unreadCount"])
	assert.Empty(t, attrs["etiquetas"])
}

func TestLeadAttributes_AllFields(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 30, 0, 0, time.FixedZone("CST", -6*3600))
	last := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	l := &Lead{
		UUID:          uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
		Phone:         "5215512345678",
		Name:          "Ana",
		Labels:        []string{"NuevoLead", "LetraEnviada"},
		UnreadCount:   3,
		LastMessageAt: &last,
		CreatedAt:     created,
	}

	attrs := l.Attributes()
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", attrs["id"])
	assert.Equal(t, "NuevoLead,LetraEnviada", attrs["etiquetas"])
	assert.Equal(t, "3", attrs["unreadCount"])
	assert.Equal(t, "2025-05-01T16:30:00Z", attrs["fecha_creacion"])
	assert.Equal(t, "2025-05-02T08:00:00Z", attrs["lastMessageAt"])
}

func TestLyricStatus(t *testing.T) {
	assert.True(t, LyricStatusPending.CanTransitionTo(LyricStatusGenerated))
	assert.True(t, LyricStatusGenerated.CanTransitionTo(LyricStatusSent))
	assert.True(t, LyricStatusPending.CanTransitionTo(LyricStatusSent))
	assert.False(t, LyricStatusSent.CanTransitionTo(LyricStatusGenerated))
	assert.False(t, LyricStatusGenerated.CanTransitionTo(LyricStatusGenerated))
	assert.False(t, LyricStatus("bogus").CanTransitionTo(LyricStatusSent))

	var s LyricStatus
	require.NoError(t, s.Scan([]byte("enviarLetra")))
	assert.Equal(t, LyricStatusGenerated, s)

	_, err := LyricStatus("bogus").Value()
	assert.Error(t, err)
}

func TestLyricRequestBeforeCreate(t *testing.T) {
	r := &LyricRequest{Purpose: "aniversario"}
	require.NoError(t, r.BeforeCreate(nil))
	assert.Equal(t, LyricStatusPending, r.Status)
	assert.NotEqual(t, uuid.Nil, r.UUID)
}

func TestAppConfigLeadTrigger(t *testing.T) {
	var missing *AppConfig
	assert.Equal(t, "NuevoLead", missing.LeadTrigger("NuevoLead"))
	assert.Equal(t, "NuevoLead", (&AppConfig{}).LeadTrigger("NuevoLead"))
	assert.Equal(t, "Promo", (&AppConfig{DefaultTrigger: "Promo"}).LeadTrigger("NuevoLead"))
}

func TestMessageSenderValid(t *testing.T) {
	assert.True(t, MessageSenderLead.Valid())
	assert.True(t, MessageSenderSystem.Valid())
	assert.False(t, MessageSender("bot").Valid())
}
