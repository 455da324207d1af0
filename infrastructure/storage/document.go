package storage

import (
	"context"
	"errors"
	"reflect"

	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ParticipantsCollection = "participants"
	MessagesCollection     = "messages"

	// IDField is assigned by the store on insert when the document has none.
	IDField = "_id"
)

var ErrNoDocuments = errors.New("no documents in result")

// Document is a schemaless record. Values are normalized to the protobuf
// Struct value space: string, float64, bool, nil, []any and map[string]any.
type Document map[string]any

func (d Document) ID() string {
	return d.String(IDField)
}

func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

func (d Document) Float(field string) (float64, bool) {
	f, ok := d[field].(float64)
	return f, ok
}

// Store hands out collections and owns the underlying client lifetime.
type Store interface {
	Collection(name string) (Collection, error)
	Close() error
}

// Collection is the document store adapter used by the repositories.
// Every call is atomic in isolation, there are no multi-call transactions.
// Documents are returned in insertion order.
type Collection interface {
	Find(ctx context.Context, filter Filter) ([]Document, error)
	FindOne(ctx context.Context, filter Filter) (Document, error)
	InsertOne(ctx context.Context, doc Document) (string, error)
	UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

type Filter interface {
	Match(doc Document) bool
}

// Eq matches documents whose field equals Value.
type Eq struct {
	Field string
	Value any
}

func (f Eq) Match(doc Document) bool {
	v, ok := doc[f.Field]
	return ok && reflect.DeepEqual(v, normalize(f.Value))
}

// Lt matches documents whose numeric field is strictly lower than Value.
type Lt struct {
	Field string
	Value float64
}

func (f Lt) Match(doc Document) bool {
	n, ok := doc.Float(f.Field)
	return ok && n < f.Value
}

// In matches documents whose string field is one of Values.
type In struct {
	Field  string
	Values []string
}

func (f In) Match(doc Document) bool {
	v, ok := doc[f.Field].(string)
	return ok && lo.Contains(f.Values, v)
}

type Or []Filter

func (f Or) Match(doc Document) bool {
	return lo.SomeBy(f, func(filter Filter) bool {
		return filter.Match(doc)
	})
}

type And []Filter

func (f And) Match(doc Document) bool {
	return lo.EveryBy(f, func(filter Filter) bool {
		return filter.Match(doc)
	})
}

type all struct{}

func (all) Match(Document) bool { return true }

// Everything matches every document of a collection.
var Everything Filter = all{}

// Update describes a partial modification, in the manner of a $set.
type Update struct {
	Set Document
}

func (u Update) apply(doc Document) Document {
	for field, value := range u.Set {
		if field == IDField {
			continue
		}
		doc[field] = normalize(value)
	}
	return doc
}

func encode(doc Document) ([]byte, error) {
	s, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decode(data []byte) (Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

// normalize brings a Go value into the Struct value space so that
// an int filter value compares equal to a stored number.
func normalize(v any) any {
	value, err := structpb.NewValue(v)
	if err != nil {
		return v
	}
	return value.AsInterface()
}

func withID(doc Document, id string) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	if out.ID() == "" {
		out[IDField] = id
	}
	return out
}

// DecodeDocument reads a raw stored value, for inspection tools.
func DecodeDocument(data []byte) (Document, error) {
	return decode(data)
}
