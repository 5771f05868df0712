package businessflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cantalab/leadflow/app/services"
	"github.com/cantalab/leadflow/config"
	"github.com/cantalab/leadflow/models"
	testingutil "github.com/cantalab/leadflow/testing"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

type inboundFixture struct {
	leads    *testingutil.FakeLeadRepository
	messages *testingutil.FakeLeadMessageRepository
	cfg      *testingutil.FakeAppConfigRepository
	hook     *test.Hook
	flow     *InboundMessageFlowImpl
}

func newInboundFixture(t *testing.T, cfg *models.AppConfig, media services.MediaStorage) *inboundFixture {
	t.Helper()
	logger, hook := newTestLogger()
	fx := &inboundFixture{
		leads:    testingutil.NewFakeLeadRepository(),
		messages: testingutil.NewFakeLeadMessageRepository(),
		cfg:      testingutil.NewFakeAppConfigRepository(cfg),
		hook:     hook,
	}
	flow := NewInboundMessageFlow(fx.leads, fx.messages, fx.cfg, media, logger).(*InboundMessageFlowImpl)
	flow.now = func() time.Time { return fixedNow }
	fx.flow = flow
	return fx
}

func TestInboundMessageFlow_UnknownNumbers(t *testing.T) {
	ctx := context.Background()

	t.Run("IgnoresGroupChats", func(t *testing.T) {
		fx := newInboundFixture(t, &models.AppConfig{AutoSaveLeads: true}, nil)
		err := fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "120363000000000000", IsGroup: true, Text: "hola"})
		require.NoError(t, err)

		count, _ := fx.leads.Count(ctx, models.LeadFilter{})
		assert.Zero(t, count)
		assert.Empty(t, fx.messages.All())
	})

	t.Run("AutoSaveOffDropsMessage", func(t *testing.T) {
		fx := newInboundFixture(t, &models.AppConfig{AutoSaveLeads: false}, nil)
		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "5215511111111", Text: "hola"}))

		count, _ := fx.leads.Count(ctx, models.LeadFilter{})
		assert.Zero(t, count)
		assert.Empty(t, fx.messages.All())
	})

	t.Run("MissingConfigRowDropsMessage", func(t *testing.T) {
		fx := newInboundFixture(t, nil, nil)
		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "5215511111111", Text: "hola"}))
		assert.Empty(t, fx.messages.All())
	})

	t.Run("AutoSaveCreatesLead", func(t *testing.T) {
		fx := newInboundFixture(t, &models.AppConfig{AutoSaveLeads: true}, nil)
		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{
			Phone:    "5215511111111",
			PushName: "María López",
			Text:     "Quiero una canción",
		}))

		lead, err := fx.leads.ByPhone(ctx, "5215511111111")
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Equal(t, "María López", lead.Name)
		assert.Equal(t, "WhatsApp", lead.Source)
		assert.Equal(t, "nuevo", lead.State)
		assert.Equal(t, []string{"NuevoLead"}, []string(lead.Labels))
		assert.Equal(t, 1, lead.UnreadCount)
		require.NotNil(t, lead.LastMessageAt)
		assert.True(t, fixedNow.Equal(*lead.LastMessageAt))

		enrollments, err := lead.Enrollments()
		require.NoError(t, err)
		assert.Empty(t, enrollments)
		assert.JSONEq(t, `[]`, string(lead.ActiveSequences))

		msgs := fx.messages.All()
		require.Len(t, msgs, 1)
		assert.Equal(t, lead.ID, msgs[0].LeadID)
		assert.Equal(t, "Quiero una canción", msgs[0].Content)
		assert.Equal(t, models.MessageSenderLead, msgs[0].Sender)
		assert.Nil(t, msgs[0].MediaType)
	})

	t.Run("AutoEnrollUsesDefaultTrigger", func(t *testing.T) {
		fx := newInboundFixture(t, &models.AppConfig{AutoSaveLeads: true, AutoEnroll: true, DefaultTrigger: "Bienvenida"}, nil)
		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "5215522222222", Text: "hola"}))

		lead, err := fx.leads.ByPhone(ctx, "5215522222222")
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Equal(t, []string{"Bienvenida"}, []string(lead.Labels))

		enrollments, err := lead.Enrollments()
		require.NoError(t, err)
		require.Len(t, enrollments, 1)
		assert.Equal(t, "Bienvenida", enrollments[0].Trigger)
		assert.Equal(t, 0, enrollments[0].Index)
		assert.True(t, fixedNow.Equal(enrollments[0].StartTime))
	})
}

func TestInboundMessageFlow_KnownLead(t *testing.T) {
	ctx := context.Background()

	t.Run("LeadMessageIncrementsUnread", func(t *testing.T) {
		fx := newInboundFixture(t, nil, nil)
		lead := &models.Lead{Phone: "5215533333333", Name: "Ana", UnreadCount: 2}
		require.NoError(t, fx.leads.Save(ctx, lead))

		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "+52 1 55 3333 3333", Text: "¿precio?"}))

		stored, _ := fx.leads.ByID(ctx, lead.ID)
		assert.Equal(t, 3, stored.UnreadCount)
		msgs := fx.messages.All()
		require.Len(t, msgs, 1)
		assert.Equal(t, models.MessageSenderLead, msgs[0].Sender)
	})

	t.Run("OwnMessageIsBusinessAndKeepsUnread", func(t *testing.T) {
		fx := newInboundFixture(t, nil, nil)
		lead := &models.Lead{Phone: "5215544444444", UnreadCount: 1}
		require.NoError(t, fx.leads.Save(ctx, lead))

		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "5215544444444", FromMe: true, Text: "Gracias"}))

		stored, _ := fx.leads.ByID(ctx, lead.ID)
		assert.Equal(t, 1, stored.UnreadCount)
		require.NotNil(t, stored.LastMessageAt)
		msgs := fx.messages.All()
		require.Len(t, msgs, 1)
		assert.Equal(t, models.MessageSenderBusiness, msgs[0].Sender)
	})

	t.Run("RepositoryFailureIsReturnedAndLogged", func(t *testing.T) {
		fx := newInboundFixture(t, nil, nil)
		lead := &models.Lead{Phone: "5215555555555"}
		require.NoError(t, fx.leads.Save(ctx, lead))
		fx.leads.FailOn("RecordActivity", errors.New("connection reset"))

		err := fx.flow.HandleMessage(ctx, services.InboundMessage{Phone: "5215555555555", Text: "hola"})
		assert.Error(t, err)

		fx.flow.Handler()(ctx, services.InboundMessage{Phone: "5215555555555", Text: "hola"})
		entry := fx.hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, "failed to store inbound message", entry.Message)
	})
}

func TestInboundMessageFlow_Media(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresMediaAndRecordsURL", func(t *testing.T) {
		storage := services.NewLocalMediaStorage(config.MediaConfig{Dir: t.TempDir(), PublicBaseURL: "https://crm.cantalab.com/media", MaxBytes: 1024})
		fx := newInboundFixture(t, nil, storage)
		lead := &models.Lead{Phone: "5215566666666"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{
			Phone:     "5215566666666",
			MediaType: "audio",
			MediaData: []byte("OggS voice note"),
			MimeType:  "audio/ogg; codecs=opus",
		}))

		msgs := fx.messages.All()
		require.Len(t, msgs, 1)
		assert.Empty(t, msgs[0].Content)
		require.NotNil(t, msgs[0].MediaType)
		assert.Equal(t, "audio", *msgs[0].MediaType)
		require.NotNil(t, msgs[0].MediaURL)
		assert.True(t, strings.HasPrefix(*msgs[0].MediaURL, "https://crm.cantalab.com/media/audio/"))
		assert.True(t, strings.HasSuffix(*msgs[0].MediaURL, ".ogg"))
	})

	t.Run("StorageFailureKeepsMessage", func(t *testing.T) {
		storage := services.NewLocalMediaStorage(config.MediaConfig{Dir: t.TempDir(), PublicBaseURL: "https://crm.cantalab.com/media", MaxBytes: 2})
		fx := newInboundFixture(t, nil, storage)
		lead := &models.Lead{Phone: "5215577777777"}
		require.NoError(t, fx.leads.Save(ctx, lead))

		require.NoError(t, fx.flow.HandleMessage(ctx, services.InboundMessage{
			Phone:     "5215577777777",
			MediaType: "image",
			MediaData: []byte("too large"),
			MimeType:  "image/jpeg",
		}))

		msgs := fx.messages.All()
		require.Len(t, msgs, 1)
		require.NotNil(t, msgs[0].MediaType)
		assert.Equal(t, "image", *msgs[0].MediaType)
		assert.Nil(t, msgs[0].MediaURL)

		entry := fx.hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.WarnLevel, entry.Level)
	})
}
