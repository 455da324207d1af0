//go:generate go run go.uber.org/mock/mockgen -source=presence_service.go -destination=../mocks/mock_presence_service.go -package=mocks
package services

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
)

type IPresenceService interface {
	Register(ctx context.Context, cmd chat.RegisterCommand) error
	ListActive(ctx context.Context) ([]chat.Participant, error)
	Heartbeat(ctx context.Context, name string) error
}

// PresenceService manages who is in the room.
// There is no cross-request locking: two concurrent registrations of the same
// name can both pass the existence check and both be inserted.
type PresenceService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	clock        func() time.Time
	log          *slog.Logger
}

func NewPresenceService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	clock func() time.Time) *PresenceService {
	return &PresenceService{
		participants: participants,
		messages:     messages,
		clock:        clock,
		log:          log,
	}
}

// Register admits a participant and announces it to the room.
// The two inserts are not atomic: if the arrival message fails, the participant stays registered.
func (s *PresenceService) Register(ctx context.Context, cmd chat.RegisterCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}

	_, err := s.participants.FindByName(ctx, cmd.Name)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", errors.ErrConflict, cmd.Name)
	case !stderrors.Is(err, errors.ErrNotFound):
		return err
	}

	now := s.clock()
	if _, err = s.participants.Create(ctx, chat.Participant{Name: cmd.Name, LastStatus: now}); err != nil {
		return err
	}
	if _, err = s.messages.Append(ctx, chat.NewArrival(cmd.Name, now)); err != nil {
		s.log.Error("Participant registered without arrival message", "name", cmd.Name, "error", err)
		return err
	}
	s.log.Info("Participant registered", "name", cmd.Name)
	return nil
}

func (s *PresenceService) ListActive(ctx context.Context) ([]chat.Participant, error) {
	return s.participants.List(ctx)
}

// Heartbeat keeps name in the room for another inactivity window.
func (s *PresenceService) Heartbeat(ctx context.Context, name string) error {
	participant, err := s.participants.FindByName(ctx, name)
	if err != nil {
		return err
	}
	return s.participants.Touch(ctx, participant.ID, s.clock())
}
