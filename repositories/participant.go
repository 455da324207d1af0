//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/infrastructure/storage"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

const (
	nameField       = "name"
	lastStatusField = "lastStatus"
)

type IParticipantRepository interface {
	Create(ctx context.Context, participant chat.Participant) (string, error)
	FindByName(ctx context.Context, name string) (chat.Participant, error)
	List(ctx context.Context) ([]chat.Participant, error)
	Touch(ctx context.Context, id string, at time.Time) error
	FindInactiveSince(ctx context.Context, cutoff time.Time) ([]chat.Participant, error)
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// ParticipantRepository stores participants as {_id, name, lastStatus} documents,
// lastStatus being milliseconds since epoch.
type ParticipantRepository struct {
	participants storage.Collection
	log          *slog.Logger
}

func NewParticipantRepository(participants storage.Collection, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{participants: participants, log: log}
}

func (r *ParticipantRepository) Create(ctx context.Context, participant chat.Participant) (string, error) {
	id, err := r.participants.InsertOne(ctx, fromParticipant(participant))
	if err != nil {
		return "", errors.Unavailable(err)
	}
	return id, nil
}

// FindByName returns errors.ErrNotFound when nobody holds that name.
func (r *ParticipantRepository) FindByName(ctx context.Context, name string) (chat.Participant, error) {
	doc, err := r.participants.FindOne(ctx, storage.Eq{Field: nameField, Value: name})
	if stderrors.Is(err, storage.ErrNoDocuments) {
		return chat.Participant{}, errors.ErrNotFound
	}
	if err != nil {
		return chat.Participant{}, errors.Unavailable(err)
	}
	return toParticipant(doc), nil
}

func (r *ParticipantRepository) List(ctx context.Context) ([]chat.Participant, error) {
	return r.find(ctx, storage.Everything)
}

// Touch refreshes lastStatus. It returns errors.ErrNotFound when the participant
// vanished in between, e.g. evicted by a concurrent sweep.
func (r *ParticipantRepository) Touch(ctx context.Context, id string, at time.Time) error {
	matched, err := r.participants.UpdateOne(ctx,
		storage.Eq{Field: storage.IDField, Value: id},
		storage.Update{Set: storage.Document{lastStatusField: at.UnixMilli()}})
	if err != nil {
		return errors.Unavailable(err)
	}
	if matched == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *ParticipantRepository) FindInactiveSince(ctx context.Context, cutoff time.Time) ([]chat.Participant, error) {
	return r.find(ctx, inactiveSince(cutoff))
}

func (r *ParticipantRepository) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := r.participants.DeleteMany(ctx, inactiveSince(cutoff))
	if err != nil {
		return 0, errors.Unavailable(err)
	}
	r.log.Debug("Inactive participants deleted", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

func (r *ParticipantRepository) find(ctx context.Context, filter storage.Filter) ([]chat.Participant, error) {
	docs, err := r.participants.Find(ctx, filter)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	return lo.Map(docs, func(doc storage.Document, _ int) chat.Participant {
		return toParticipant(doc)
	}), nil
}

func inactiveSince(cutoff time.Time) storage.Filter {
	return storage.Lt{Field: lastStatusField, Value: float64(cutoff.UnixMilli())}
}

func fromParticipant(p chat.Participant) storage.Document {
	doc := storage.Document{
		nameField:       p.Name,
		lastStatusField: p.LastStatus.UnixMilli(),
	}
	if p.ID != "" {
		doc[storage.IDField] = p.ID
	}
	return doc
}

func toParticipant(doc storage.Document) chat.Participant {
	lastStatus, _ := doc.Float(lastStatusField)
	return chat.Participant{
		ID:         doc.ID(),
		Name:       doc.String(nameField),
		LastStatus: time.UnixMilli(int64(lastStatus)),
	}
}
