package internal

import (
	"chat-room/infrastructure/storage"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "doc:"

type InspectRow struct {
	Key        string
	Collection string
	Seq        string
	ID         string
	Detail     string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves a read-only view of the Badger keys under a prefix,
// plus the stats given by statsProvider. The caller shuts the returned server down.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) *http.Server {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DocumentMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		data.Items = Scan(db, prefix, mapper)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Inspector page failed", "error", err)
		}
	})

	server := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
	return server
}

// Scan maps every key under prefix, in key order.
func Scan(db *badger.DB, prefix string, mapper RowMapper) []InspectRow {
	var rows []InspectRow
	_ = db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			_ = item.Value(func(val []byte) error {
				rows = append(rows, mapper(string(item.Key()), val))
				return nil
			})
		}
		return nil
	})
	return rows
}

// DocumentMapper reads keys shaped "doc:{collection}:{seq}" and summarizes the stored document.
// Sequence keys and foreign values fall back to a raw row.
func DocumentMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:        key,
		Collection: "-",
		Seq:        "-",
		ID:         "--------",
		Detail:     "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0]+":" != defaultPrefix {
		return row
	}
	row.Collection = parts[1]
	if seq, err := strconv.ParseUint(parts[2], 10, 64); err == nil {
		row.Seq = strconv.FormatUint(seq, 10)
	}

	doc, err := storage.DecodeDocument(val)
	if err != nil {
		return row
	}
	row.ID = doc.ID()
	if len(row.ID) > 8 {
		row.ID = row.ID[:8]
	}
	row.Detail = Summary(doc)
	return row
}

// Summary renders the document fields but the id, sorted by name.
func Summary(doc storage.Document) string {
	fields := make([]string, 0, len(doc))
	for field, value := range doc {
		if field == storage.IDField {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s=%v", field, value))
	}
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
