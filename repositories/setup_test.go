package repositories

import (
	"chat-room/infrastructure/storage"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// setupCollections opens an in-memory Badger store and returns both collections.
func setupCollections(t *testing.T) (participants, messages storage.Collection, log *slog.Logger) {
	req := require.New(t)
	log = logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)

	store := storage.NewBadgerStore(db, log)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})

	participants, err = store.Collection(storage.ParticipantsCollection)
	req.NoError(err)
	messages, err = store.Collection(storage.MessagesCollection)
	req.NoError(err)
	return participants, messages, log
}
