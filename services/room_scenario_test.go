package services

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/infrastructure/storage"
	"chat-room/repositories"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// room wires the three services on an in-memory Badger store and a manual clock.
type room struct {
	presence     *PresenceService
	messages     *MessageService
	eviction     *EvictionService
	participants *repositories.ParticipantRepository
	log          *repositories.MessageRepository
	rawMessages  storage.Collection

	mu  sync.Mutex
	now time.Time
}

func (r *room) clock() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

func (r *room) advance(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = r.now.Add(d)
}

func newRoom(t *testing.T) *room {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	store := storage.NewBadgerStore(db, log)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})

	participantsColl, err := store.Collection(storage.ParticipantsCollection)
	req.NoError(err)
	messagesColl, err := store.Collection(storage.MessagesCollection)
	req.NoError(err)

	r := &room{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	r.participants = repositories.NewParticipantRepository(participantsColl, log)
	r.rawMessages = messagesColl
	r.log = repositories.NewMessageRepository(messagesColl, nil, log)
	r.presence = NewPresenceService(log, r.participants, r.log, r.clock)
	r.messages = NewMessageService(log, r.participants, r.log, nil, r.clock)
	r.eviction = NewEvictionService(log, r.participants, r.log, 10*time.Second, r.clock)
	return r
}

// logSize counts every stored message, whoever may read it.
func (r *room) logSize(t *testing.T) int {
	docs, err := r.rawMessages.Find(context.Background(), storage.Everything)
	require.NoError(t, err)
	return len(docs)
}

func TestRoom_RegisterTwiceConflicts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRoom(t)

	req.NoError(r.presence.Register(ctx, chat.RegisterCommand{Name: "ana"}))
	req.ErrorIs(r.presence.Register(ctx, chat.RegisterCommand{Name: "ana"}), errors.ErrConflict)

	active, err := r.presence.ListActive(ctx)
	req.NoError(err)
	req.Len(active, 1)
	req.Equal("ana", active[0].Name)

	messages, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "ana"})
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("ana", messages[0].From)
	req.Equal(chat.Status, messages[0].Type)
	req.Equal(chat.EnteredTheRoom, messages[0].Text)
	req.Equal("12:00:00", messages[0].Time)
}

func TestRoom_HeartbeatMovesLastStatusForward(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRoom(t)

	req.NoError(r.presence.Register(ctx, chat.RegisterCommand{Name: "ana"}))
	before, err := r.participants.FindByName(ctx, "ana")
	req.NoError(err)

	r.advance(3 * time.Second)
	req.NoError(r.presence.Heartbeat(ctx, "ana"))

	after, err := r.participants.FindByName(ctx, "ana")
	req.NoError(err)
	req.True(!after.LastStatus.Before(before.LastStatus))
	req.Equal(before.LastStatus.Add(3*time.Second), after.LastStatus)

	req.ErrorIs(r.presence.Heartbeat(ctx, "bob"), errors.ErrNotFound)
}

func TestRoom_UnregisteredSenderIsRejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRoom(t)

	err := r.messages.Post(ctx, chat.PostMessageCommand{From: "ana", To: chat.Broadcast, Text: "hi", Type: chat.Public})
	req.ErrorIs(err, errors.ErrValidation)

	messages, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "ana"})
	req.NoError(err)
	req.Empty(messages)
}

func TestRoom_Visibility(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRoom(t)

	for _, name := range []string{"ana", "bob", "carol"} {
		req.NoError(r.presence.Register(ctx, chat.RegisterCommand{Name: name}))
	}
	req.NoError(r.messages.Post(ctx, chat.PostMessageCommand{From: "ana", To: chat.Broadcast, Text: "hi", Type: chat.Public}))
	req.NoError(r.messages.Post(ctx, chat.PostMessageCommand{From: "ana", To: "carol", Text: "secret", Type: chat.Private}))

	forBob, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "bob"})
	req.NoError(err)
	req.Len(forBob, 2)
	req.True(lo.ContainsBy(forBob, func(m chat.Message) bool { return m.Text == "hi" }))
	req.False(lo.ContainsBy(forBob, func(m chat.Message) bool { return m.Type == chat.Private }))

	forCarol, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "carol", Limit: lo.ToPtr(1)})
	req.NoError(err)
	req.Len(forCarol, 1)
	req.Equal("secret", forCarol[0].Text)

	forAna, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "ana", Limit: lo.ToPtr(2)})
	req.NoError(err)
	req.Equal([]string{"secret", "hi"}, lo.Map(forAna, func(m chat.Message, _ int) string { return m.Text }))
}

func TestRoom_SweepEvictsStaleParticipants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRoom(t)

	req.NoError(r.presence.Register(ctx, chat.RegisterCommand{Name: "ana"}))
	r.advance(15 * time.Second)
	req.NoError(r.presence.Register(ctx, chat.RegisterCommand{Name: "bob"}))
	r.advance(5 * time.Second)

	// ana is 20s idle, bob 5s
	report, err := r.eviction.Sweep(ctx)
	req.NoError(err)
	req.Equal([]string{"ana"}, report.Evicted)
	req.Equal(int64(1), report.Deleted)

	active, err := r.presence.ListActive(ctx)
	req.NoError(err)
	req.Equal([]string{"bob"}, lo.Map(active, func(p chat.Participant, _ int) string { return p.Name }))

	// Status messages are only visible to the participant they are about
	messages, err := r.messages.Query(ctx, chat.QueryMessagesCommand{Viewer: "ana", Limit: lo.ToPtr(1)})
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(chat.Message{
		ID:   messages[0].ID,
		From: "ana",
		To:   chat.Broadcast,
		Text: chat.LeftTheRoom,
		Type: chat.Status,
		Time: "12:00:20",
	}, messages[0])

	// A second run has nothing left to do
	report, err = r.eviction.Sweep(ctx)
	req.NoError(err)
	req.Empty(report.Evicted)
	req.Equal(3, r.logSize(t))
}
