//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"chat-room/contract"
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

const DefaultSearchLimit = 20

type IMessageService interface {
	Post(ctx context.Context, cmd chat.PostMessageCommand) error
	Query(ctx context.Context, cmd chat.QueryMessagesCommand) ([]chat.Message, error)
	Search(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error)
}

type MessageService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	censor       contract.ICensor
	clock        func() time.Time
	log          *slog.Logger
}

// NewMessageService builds the message log service. censor may be nil.
func NewMessageService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	censor contract.ICensor,
	clock func() time.Time) *MessageService {
	return &MessageService{
		participants: participants,
		messages:     messages,
		censor:       censor,
		clock:        clock,
		log:          log,
	}
}

// Post appends a user message. Fields are validated first, all at once,
// then the sender must be an active participant.
func (s *MessageService) Post(ctx context.Context, cmd chat.PostMessageCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	if _, err := s.participants.FindByName(ctx, cmd.From); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return errors.NewValidationError(fmt.Sprintf("sender %q is not an active participant", cmd.From))
		}
		return err
	}

	text := cmd.Text
	if s.censor != nil {
		var words []string
		if text, words = s.censor.Censor(text); len(words) > 0 {
			s.log.Info("Censored words replaced", "from", cmd.From, "count", len(words))
		}
	}

	_, err := s.messages.Append(ctx, chat.Message{
		From: cmd.From,
		To:   cmd.To,
		Text: text,
		Type: cmd.Type,
		Time: s.clock().Format(chat.TimeLayout),
	})
	return err
}

// Query returns what the viewer may read, newest first, bounded by the optional limit.
func (s *MessageService) Query(ctx context.Context, cmd chat.QueryMessagesCommand) ([]chat.Message, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	messages, err := s.messages.FindVisibleTo(ctx, cmd.Viewer)
	if err != nil {
		return nil, err
	}
	return mostRecentFirst(messages, cmd.Limit), nil
}

func (s *MessageService) Search(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	messages, err := s.messages.SearchVisibleTo(ctx, cmd.Viewer, cmd.Terms)
	if err != nil {
		return nil, err
	}
	limit := lo.FromPtrOr(cmd.Limit, DefaultSearchLimit)
	return mostRecentFirst(messages, &limit), nil
}
