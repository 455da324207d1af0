package services

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/mocks"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestPresenceService_Register(t *testing.T) {
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	now := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

	t.Run("should create the participant and announce the arrival", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		messages := mocks.NewMockIMessageRepository(ctrl)
		service := NewPresenceService(log, participants, messages, fixedClock(now))

		gomock.InOrder(
			participants.EXPECT().FindByName(ctx, "ana").Return(chat.Participant{}, errors.ErrNotFound),
			participants.EXPECT().Create(ctx, chat.Participant{Name: "ana", LastStatus: now}).Return("id-1", nil),
			messages.EXPECT().Append(ctx, chat.Message{
				From: "ana",
				To:   chat.Broadcast,
				Text: chat.EnteredTheRoom,
				Type: chat.Status,
				Time: "14:05:09",
			}).Return("msg-1", nil),
		)

		req.NoError(service.Register(ctx, chat.RegisterCommand{Name: "ana"}))
	})

	t.Run("should reject an empty name before touching the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		messages := mocks.NewMockIMessageRepository(ctrl)
		service := NewPresenceService(log, participants, messages, fixedClock(now))

		err := service.Register(ctx, chat.RegisterCommand{})
		req.ErrorIs(err, errors.ErrValidation)
		req.Equal([]string{`"name" is required`}, errors.Violations(err))
	})

	t.Run("should fail with a conflict when the name is taken", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		messages := mocks.NewMockIMessageRepository(ctrl)
		service := NewPresenceService(log, participants, messages, fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ana").Return(chat.Participant{ID: "id-1", Name: "ana"}, nil)
		participants.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
		messages.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(service.Register(ctx, chat.RegisterCommand{Name: "ana"}), errors.ErrConflict)
	})

	t.Run("should surface a store failure during the existence check", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		messages := mocks.NewMockIMessageRepository(ctrl)
		service := NewPresenceService(log, participants, messages, fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ana").
			Return(chat.Participant{}, errors.Unavailable(stderrors.New("connection refused")))

		err := service.Register(ctx, chat.RegisterCommand{Name: "ana"})
		req.ErrorIs(err, errors.ErrStoreUnavailable)
	})

	t.Run("should keep the participant when the arrival message fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		messages := mocks.NewMockIMessageRepository(ctrl)
		service := NewPresenceService(log, participants, messages, fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ana").Return(chat.Participant{}, errors.ErrNotFound)
		participants.EXPECT().Create(ctx, gomock.Any()).Return("id-1", nil)
		messages.EXPECT().Append(ctx, gomock.Any()).Return("", errors.Unavailable(stderrors.New("disk full")))

		err := service.Register(ctx, chat.RegisterCommand{Name: "ana"})
		req.ErrorIs(err, errors.ErrStoreUnavailable)
	})
}

func TestPresenceService_Heartbeat(t *testing.T) {
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	now := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

	t.Run("should refresh the last status of a registered participant", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		service := NewPresenceService(log, participants, mocks.NewMockIMessageRepository(ctrl), fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ana").
			Return(chat.Participant{ID: "id-1", Name: "ana", LastStatus: now.Add(-5 * time.Second)}, nil)
		participants.EXPECT().Touch(ctx, "id-1", now).Return(nil)

		req.NoError(service.Heartbeat(ctx, "ana"))
	})

	t.Run("should fail with not found for an unknown participant", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		service := NewPresenceService(log, participants, mocks.NewMockIMessageRepository(ctrl), fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ghost").Return(chat.Participant{}, errors.ErrNotFound)
		participants.EXPECT().Touch(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(service.Heartbeat(ctx, "ghost"), errors.ErrNotFound)
	})

	t.Run("should fail with not found when evicted in between", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		service := NewPresenceService(log, participants, mocks.NewMockIMessageRepository(ctrl), fixedClock(now))

		participants.EXPECT().FindByName(ctx, "ana").Return(chat.Participant{ID: "id-1", Name: "ana"}, nil)
		participants.EXPECT().Touch(ctx, "id-1", now).Return(errors.ErrNotFound)

		req.ErrorIs(service.Heartbeat(ctx, "ana"), errors.ErrNotFound)
	})
}

func TestPresenceService_ListActive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	service := NewPresenceService(log, participants, mocks.NewMockIMessageRepository(ctrl), time.Now)

	expected := []chat.Participant{{ID: "1", Name: "ana"}, {ID: "2", Name: "bob"}}
	participants.EXPECT().List(ctx).Return(expected, nil)

	active, err := service.ListActive(ctx)
	req.NoError(err)
	req.Equal(expected, active)
}
