package rest

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"chat-room/mocks"
	"chat-room/observability"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	app        *fiber.App
	presence   *mocks.MockIPresenceService
	messages   *mocks.MockIMessageService
	monitoring *observability.Monitoring
}

func newFixture(t *testing.T) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	f := fixture{
		presence:   mocks.NewMockIPresenceService(ctrl),
		messages:   mocks.NewMockIMessageService(ctrl),
		monitoring: observability.NewMonitoring(log),
	}
	f.app = NewApp(log, f.presence, f.messages, f.monitoring)
	return f
}

func do(t *testing.T, app *fiber.App, method, target, user, body string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)
	if body != "" {
		r.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != "" {
		r.Header.Set(IdentityHeader, user)
	}
	resp, err := app.Test(r, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestServer_Register(t *testing.T) {
	t.Run("should answer created", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Register(gomock.Any(), chat.RegisterCommand{Name: "ana"}).Return(nil)

		resp, _ := do(t, f.app, http.MethodPost, "/participants", "", `{"name":"ana"}`)
		req.Equal(http.StatusCreated, resp.StatusCode)
		req.Equal(uint64(1), f.monitoring.GetLatest().Responses2xx)
	})

	t.Run("should answer conflict on a duplicate name", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Register(gomock.Any(), gomock.Any()).Return(errors.ErrConflict)

		resp, _ := do(t, f.app, http.MethodPost, "/participants", "", `{"name":"ana"}`)
		req.Equal(http.StatusConflict, resp.StatusCode)
		req.Equal(uint64(1), f.monitoring.GetLatest().Responses4xx)
	})

	t.Run("should pass an empty body to validation", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Register(gomock.Any(), chat.RegisterCommand{}).
			Return(errors.NewValidationError(`"name" is required`))

		resp, body := do(t, f.app, http.MethodPost, "/participants", "", "")
		req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
		req.JSONEq(`["\"name\" is required"]`, body)
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

		resp, _ := do(t, f.app, http.MethodPost, "/participants", "", `{"name":`)
		req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestServer_ListParticipants(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	lastStatus := time.UnixMilli(1_700_000_000_123)
	f.presence.EXPECT().ListActive(gomock.Any()).
		Return([]chat.Participant{{ID: "id-1", Name: "ana", LastStatus: lastStatus}}, nil)

	resp, body := do(t, f.app, http.MethodGet, "/participants", "", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.JSONEq(`[{"_id":"id-1","name":"ana","lastStatus":1700000000123}]`, body)
}

func TestServer_PostMessage(t *testing.T) {
	t.Run("should take the sender from the identity header", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Post(gomock.Any(), chat.PostMessageCommand{
			From: "ana",
			To:   "Todos",
			Text: "hi",
			Type: chat.Public,
		}).Return(nil)

		resp, _ := do(t, f.app, http.MethodPost, "/messages", "ana",
			`{"from":"mallory","to":"Todos","text":"hi","type":"message"}`)
		req.Equal(http.StatusCreated, resp.StatusCode)
	})

	t.Run("should list every violation", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Post(gomock.Any(), gomock.Any()).
			Return(errors.NewValidationError(`"to" is required`, `"text" is required`))

		resp, body := do(t, f.app, http.MethodPost, "/messages", "ana", `{"type":"message"}`)
		req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
		var violations []string
		req.NoError(json.Unmarshal([]byte(body), &violations))
		req.Len(violations, 2)
	})

	t.Run("should hide store failures behind an internal error", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Post(gomock.Any(), gomock.Any()).
			Return(errors.Unavailable(stderrors.New("connection refused")))

		resp, body := do(t, f.app, http.MethodPost, "/messages", "ana", `{"to":"Todos","text":"hi","type":"message"}`)
		req.Equal(http.StatusInternalServerError, resp.StatusCode)
		req.NotContains(body, "connection refused")
		req.Equal(uint64(1), f.monitoring.GetLatest().Responses5xx)
	})
}

func TestServer_ListMessages(t *testing.T) {
	t.Run("should forward the viewer and the limit", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Query(gomock.Any(), chat.QueryMessagesCommand{Viewer: "bob", Limit: lo.ToPtr(5)}).
			Return([]chat.Message{{ID: "m1", From: "ana", To: "Todos", Text: "hi", Type: chat.Public, Time: "10:00:00"}}, nil)

		resp, body := do(t, f.app, http.MethodGet, "/messages?limit=5", "bob", "")
		req.Equal(http.StatusOK, resp.StatusCode)
		req.JSONEq(`[{"_id":"m1","from":"ana","to":"Todos","text":"hi","type":"message","time":"10:00:00"}]`, body)
	})

	t.Run("should omit the limit when absent", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Query(gomock.Any(), chat.QueryMessagesCommand{Viewer: "bob"}).Return(nil, nil)

		resp, body := do(t, f.app, http.MethodGet, "/messages", "bob", "")
		req.Equal(http.StatusOK, resp.StatusCode)
		req.JSONEq(`[]`, body)
	})

	t.Run("should reject a limit that is not a number", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.messages.EXPECT().Query(gomock.Any(), gomock.Any()).Times(0)

		resp, body := do(t, f.app, http.MethodGet, "/messages?limit=ten", "bob", "")
		req.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
		req.JSONEq(`["\"limit\" must be an integer"]`, body)
	})
}

func TestServer_SearchMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.messages.EXPECT().Search(gomock.Any(), chat.SearchMessagesCommand{Viewer: "bob", Terms: "pizza"}).
		Return([]chat.Message{{ID: "m1", Text: "pizza tonight", Type: chat.Public}}, nil)

	resp, body := do(t, f.app, http.MethodGet, "/messages/search?q=pizza", "bob", "")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(body, "pizza tonight")
}

func TestServer_Heartbeat(t *testing.T) {
	t.Run("should answer ok", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Heartbeat(gomock.Any(), "ana").Return(nil)

		resp, _ := do(t, f.app, http.MethodPost, "/status", "ana", "")
		req.Equal(http.StatusOK, resp.StatusCode)
	})

	t.Run("should answer not found for an unknown participant", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.presence.EXPECT().Heartbeat(gomock.Any(), "ghost").Return(errors.ErrNotFound)

		resp, _ := do(t, f.app, http.MethodPost, "/status", "ghost", "")
		req.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_RecoversFromPanics(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.presence.EXPECT().ListActive(gomock.Any()).DoAndReturn(func(context.Context) ([]chat.Participant, error) {
		panic("boom")
	})

	resp, _ := do(t, f.app, http.MethodGet, "/participants", "", "")
	req.Equal(http.StatusInternalServerError, resp.StatusCode)
}
