package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/glpisum/internal/schema"
	"go.uber.org/zap"
)

const (
	testPrompt = "what is the capital of Assyria"

	msgInvalidJSON = "Invalid JSON payload"
	msgNoEvent     = "Webhook received, but no relevant event found."
	msgInitiated   = "Ticket processing initiated for ID: "
)

// webhookEvent is one GLPI notification. Fields stay untyped so events of
// other kinds never fail decoding.
type webhookEvent struct {
	Event    interface{} `json:"event"`
	ItemType interface{} `json:"itemtype"`
	ItemsID  interface{} `json:"items_id"`
}

func (ev webhookEvent) isNewTicket() bool {
	return ev.Event == "add" && ev.ItemType == "Ticket"
}

// ticketID accepts a non-negative integral number or a numeric string.
func (ev webhookEvent) ticketID() (int, error) {
	var id int64
	switch v := ev.ItemsID.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
				return 0, fmt.Errorf("items_id %s is not a ticket id", v)
			}
			n = int64(f)
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("items_id %q is not a ticket id", v)
		}
		id = n
	case nil:
		return 0, errors.New("items_id missing")
	default:
		return 0, fmt.Errorf("items_id %v is not a ticket id", v)
	}
	if id < 0 || id > math.MaxInt32 {
		return 0, fmt.Errorf("items_id %d is out of range", id)
	}
	return int(id), nil
}

func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		s.metrics.WebhookRequest("invalid")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidJSON})
	}
	if err := schema.ValidateWebhookDocument(body); err != nil {
		s.metrics.WebhookRequest("invalid")
		if errors.Is(err, schema.ErrMalformedJSON) {
			s.logger.Warn("malformed webhook payload", zap.Error(err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidJSON})
		}
		s.logger.Warn("webhook payload rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid webhook payload: " + err.Error()})
	}

	var events []webhookEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&events); err != nil {
		s.metrics.WebhookRequest("invalid")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidJSON})
	}
	s.logger.Debug("webhook received", zap.Int("events", len(events)))

	// resolve every id before dispatching so a bad event dispatches nothing
	var ids []int
	for i, ev := range events {
		if !ev.isNewTicket() {
			continue
		}
		id, err := ev.ticketID()
		if err != nil {
			s.metrics.WebhookRequest("invalid")
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("event %d: %v", i, err),
			})
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		s.metrics.WebhookRequest("ignored")
		return c.JSON(http.StatusOK, map[string]string{"message": msgNoEvent})
	}

	labels := make([]string, len(ids))
	for i, id := range ids {
		taskID := s.dispatcher.Dispatch(id)
		s.logger.Info("ticket processing dispatched", zap.Int("ticket_id", id), zap.String("task_id", taskID))
		labels[i] = strconv.Itoa(id)
	}
	s.metrics.WebhookRequest("dispatched")
	return c.JSON(http.StatusOK, map[string]string{"message": msgInitiated + strings.Join(labels, ", ")})
}

func (s *Server) handleTestLLM(c echo.Context) error {
	out, err := s.llm.Complete(c.Request().Context(), testPrompt, "")
	if err != nil {
		s.logger.Error("llm test failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"response": out})
}
