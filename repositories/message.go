//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

const (
	fromField = "from"
	toField   = "to"
	textField = "text"
	typeField = "type"
	timeField = "time"
)

type IMessageRepository interface {
	Append(ctx context.Context, message chat.Message) (string, error)
	FindVisibleTo(ctx context.Context, viewer string) ([]chat.Message, error)
	SearchVisibleTo(ctx context.Context, viewer, terms string) ([]chat.Message, error)
}

// MessageIndex is the full-text side of the log.
type MessageIndex interface {
	Index(message chat.Message) error
	Search(ctx context.Context, viewer, terms string) ([]string, error)
}

// MessageRepository is the append-only message log. Reads return messages
// in insertion order, the oldest first.
type MessageRepository struct {
	messages storage.Collection
	index    MessageIndex
	log      *slog.Logger
}

// NewMessageRepository builds the log. index may be nil, search then falls back
// to a plain substring scan.
func NewMessageRepository(messages storage.Collection, index MessageIndex, log *slog.Logger) *MessageRepository {
	return &MessageRepository{messages: messages, index: index, log: log}
}

// Append stores the message then indexes it. An indexing failure is only logged:
// the log is the source of truth.
func (r *MessageRepository) Append(ctx context.Context, message chat.Message) (string, error) {
	id, err := r.messages.InsertOne(ctx, fromMessage(message))
	if err != nil {
		return "", errors.Unavailable(err)
	}
	if r.index != nil {
		message.ID = id
		if err := r.index.Index(message); err != nil {
			r.log.Warn("Message not indexed", "id", id, "error", err)
		}
	}
	return id, nil
}

// Reindex feeds every stored message to the index, oldest first. An in-memory
// index starts empty, the log may not. Already indexed ids are replaced.
func (r *MessageRepository) Reindex(ctx context.Context) (int, error) {
	if r.index == nil {
		return 0, nil
	}
	messages, err := r.find(ctx, storage.Everything)
	if err != nil {
		return 0, err
	}
	for _, m := range messages {
		if err := r.index.Index(m); err != nil {
			return 0, fmt.Errorf("index message %s: %w", m.ID, err)
		}
	}
	return len(messages), nil
}

// FindVisibleTo returns public messages plus everything sent by or addressed to viewer.
func (r *MessageRepository) FindVisibleTo(ctx context.Context, viewer string) ([]chat.Message, error) {
	return r.find(ctx, visibleTo(viewer))
}

func (r *MessageRepository) SearchVisibleTo(ctx context.Context, viewer, terms string) ([]chat.Message, error) {
	if r.index == nil {
		visible, err := r.FindVisibleTo(ctx, viewer)
		if err != nil {
			return nil, err
		}
		needle := strings.ToLower(terms)
		return lo.Filter(visible, func(m chat.Message, _ int) bool {
			return strings.Contains(strings.ToLower(m.Text), needle)
		}), nil
	}

	ids, err := r.index.Search(ctx, viewer, terms)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	// The index ranks by relevance, the log gives back insertion order.
	return r.find(ctx, storage.And{
		storage.In{Field: storage.IDField, Values: ids},
		visibleTo(viewer),
	})
}

func (r *MessageRepository) find(ctx context.Context, filter storage.Filter) ([]chat.Message, error) {
	docs, err := r.messages.Find(ctx, filter)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	return lo.Map(docs, func(doc storage.Document, _ int) chat.Message {
		return toMessage(doc)
	}), nil
}

func visibleTo(viewer string) storage.Filter {
	return storage.Or{
		storage.Eq{Field: typeField, Value: string(chat.Public)},
		storage.Eq{Field: fromField, Value: viewer},
		storage.Eq{Field: toField, Value: viewer},
	}
}

func fromMessage(m chat.Message) storage.Document {
	doc := storage.Document{
		fromField: m.From,
		toField:   m.To,
		textField: m.Text,
		typeField: string(m.Type),
		timeField: m.Time,
	}
	if m.ID != "" {
		doc[storage.IDField] = m.ID
	}
	return doc
}

func toMessage(doc storage.Document) chat.Message {
	return chat.Message{
		ID:   doc.ID(),
		From: doc.String(fromField),
		To:   doc.String(toField),
		Text: doc.String(textField),
		Type: chat.MessageType(doc.String(typeField)),
		Time: doc.String(timeField),
	}
}
