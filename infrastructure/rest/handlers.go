package rest

import (
	"chat-room/domain/chat"
	"chat-room/errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type participantResponse struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type messageResponse struct {
	ID   string `json:"_id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var cmd chat.RegisterCommand
	if err := parseBody(c, &cmd); err != nil {
		return err
	}
	if err := s.presence.Register(c.UserContext(), cmd); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) listParticipants(c *fiber.Ctx) error {
	participants, err := s.presence.ListActive(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(lo.Map(participants, func(p chat.Participant, _ int) participantResponse {
		return participantResponse{ID: p.ID, Name: p.Name, LastStatus: p.LastStatus.UnixMilli()}
	}))
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	var cmd chat.PostMessageCommand
	if err := parseBody(c, &cmd); err != nil {
		return err
	}
	cmd.From = c.Get(IdentityHeader)
	if err := s.messages.Post(c.UserContext(), cmd); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	messages, err := s.messages.Query(c.UserContext(), chat.QueryMessagesCommand{
		Viewer: c.Get(IdentityHeader),
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(toMessageResponse(messages))
}

func (s *Server) searchMessages(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	messages, err := s.messages.Search(c.UserContext(), chat.SearchMessagesCommand{
		Viewer: c.Get(IdentityHeader),
		Terms:  c.Query("q"),
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(toMessageResponse(messages))
}

func (s *Server) heartbeat(c *fiber.Ctx) error {
	if err := s.presence.Heartbeat(c.UserContext(), c.Get(IdentityHeader)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

// parseBody treats an empty body as an empty object, missing fields are then
// reported by validation.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return errors.NewValidationError("body must be a JSON object")
	}
	return nil
}

// parseLimit reads the optional limit query parameter. Range checks belong to the services.
func parseLimit(c *fiber.Ctx) (*int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.NewValidationError(`"limit" must be an integer`)
	}
	return &limit, nil
}

func toMessageResponse(messages []chat.Message) []messageResponse {
	return lo.Map(messages, func(m chat.Message, _ int) messageResponse {
		return messageResponse{
			ID:   m.ID,
			From: m.From,
			To:   m.To,
			Text: m.Text,
			Type: string(m.Type),
			Time: m.Time,
		}
	})
}
