package search

import (
	"chat-room/domain/chat"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

const (
	textField = "text"
	fromField = "from"
	toField   = "to"
	typeField = "type"

	// MaxHits bounds a single index lookup, visibility is already applied by the query.
	MaxHits = 1000
)

// MessageIndex is a full-text index over the message log.
// It only stores ids: the log remains the source of truth for content and order.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// OpenMessageIndex opens an on-disk index at path, or an in-memory one when path is empty.
func OpenMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	config := bluge.InMemoryOnlyConfig()
	if path != "" {
		config = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

// Index adds the message, or replaces it when its id is already indexed.
func (i *MessageIndex) Index(message chat.Message) error {
	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField(textField, message.Text)).
		AddField(bluge.NewKeywordField(fromField, message.From)).
		AddField(bluge.NewKeywordField(toField, message.To)).
		AddField(bluge.NewKeywordField(typeField, string(message.Type)))
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the ids of messages matching terms that viewer is allowed to read,
// best match first.
func (i *MessageIndex) Search(ctx context.Context, viewer, terms string) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	visible := bluge.NewBooleanQuery().
		AddShould(bluge.NewTermQuery(string(chat.Public)).SetField(typeField)).
		AddShould(bluge.NewTermQuery(viewer).SetField(fromField)).
		AddShould(bluge.NewTermQuery(viewer).SetField(toField)).
		SetMinShould(1)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(textField)).
		AddMust(visible)

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(MaxHits, query))
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	i.log.Debug("Index searched", "viewer", viewer, "terms", terms, "hits", len(ids))
	return ids, nil
}

func (i *MessageIndex) Close() error {
	i.log.Info("Closing Bluge...")
	return i.writer.Close()
}
