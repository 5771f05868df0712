package businessflow

import (
	"context"
	"testing"

	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	testingutil "github.com/cantalab/leadflow/testing"
	"github.com/cantalab/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLyricRequestFlow_Create(t *testing.T) {
	ctx := context.Background()
	logger, _ := newTestLogger()
	leads := testingutil.NewFakeLeadRepository()
	lyrics := testingutil.NewFakeLyricRequestRepository()
	flow := NewLyricRequestFlow(lyrics, leads, logger)

	lead := &models.Lead{Phone: "5215512345678", Name: "Ana"}
	require.NoError(t, leads.Save(ctx, lead))

	t.Run("ResolvesLeadByPhone", func(t *testing.T) {
		out, err := flow.CreateLyricRequest(ctx, &dto.CreateLyricRequestRequest{
			Purpose:     "Aniversario",
			IncludeName: "Carlos",
			Anecdotes:   "Nos conocimos en la playa",
			LeadPhone:   "+52 1 55 1234 5678",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Sin letra", out.Status)
		assert.Equal(t, "5215512345678", out.LeadPhone)
		require.NotNil(t, out.LeadID)
		assert.Equal(t, lead.ID, *out.LeadID)
		assert.Nil(t, out.Lyric)

		stored, err := lyrics.ByID(ctx, out.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LyricStatusPending, stored.Status)
	})

	t.Run("LeadlessRequestIsAccepted", func(t *testing.T) {
		out, err := flow.CreateLyricRequest(ctx, &dto.CreateLyricRequestRequest{Purpose: "Cumpleaños", LeadPhone: "5215599999999"}, nil)
		require.NoError(t, err)
		assert.Nil(t, out.LeadID)
	})

	t.Run("ExplicitLeadMustExist", func(t *testing.T) {
		_, err := flow.CreateLyricRequest(ctx, &dto.CreateLyricRequestRequest{Purpose: "Boda", LeadPhone: "5215512345678", LeadID: utils.ToPtr(uint(77))}, nil)
		assert.True(t, IsLeadNotFound(err))
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := flow.CreateLyricRequest(ctx, &dto.CreateLyricRequestRequest{Purpose: " ", LeadPhone: "5215512345678"}, nil)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "INVALID_PURPOSE", be.Code)

		_, err = flow.CreateLyricRequest(ctx, &dto.CreateLyricRequestRequest{Purpose: "Boda", LeadPhone: "sin número"}, nil)
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "INVALID_PHONE", be.Code)
	})
}

func TestLyricRequestFlow_List(t *testing.T) {
	ctx := context.Background()
	logger, _ := newTestLogger()
	lyrics := testingutil.NewFakeLyricRequestRepository()
	flow := NewLyricRequestFlow(lyrics, testingutil.NewFakeLeadRepository(), logger)

	require.NoError(t, lyrics.Save(ctx, &models.LyricRequest{Purpose: "a", LeadPhone: "1"}))
	require.NoError(t, lyrics.Save(ctx, &models.LyricRequest{Purpose: "b", LeadPhone: "2", Status: models.LyricStatusGenerated, Lyric: utils.ToPtr("letra")}))
	require.NoError(t, lyrics.Save(ctx, &models.LyricRequest{Purpose: "c", LeadPhone: "3"}))

	t.Run("AllNewestFirst", func(t *testing.T) {
		resp, err := flow.ListLyricRequests(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Total)
		require.Len(t, resp.Requests, 3)
		assert.Equal(t, "c", resp.Requests[0].Purpose)
	})

	t.Run("ByStatus", func(t *testing.T) {
		resp, err := flow.ListLyricRequests(ctx, &dto.ListLyricRequestsRequest{Status: utils.ToPtr("enviarLetra")})
		require.NoError(t, err)
		require.Len(t, resp.Requests, 1)
		assert.Equal(t, "b", resp.Requests[0].Purpose)
		require.NotNil(t, resp.Requests[0].Lyric)
		assert.Equal(t, "letra", *resp.Requests[0].Lyric)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := flow.ListLyricRequests(ctx, &dto.ListLyricRequestsRequest{Status: utils.ToPtr("archivada")})
		assert.ErrorIs(t, err, ErrInvalidLyricStatus)
	})

	t.Run("Get", func(t *testing.T) {
		got, err := flow.GetLyricRequest(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "b", got.Purpose)

		_, err = flow.GetLyricRequest(ctx, 50)
		assert.True(t, IsLyricRequestNotFound(err))
	})
}
