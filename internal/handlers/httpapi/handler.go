// Package httpapi mounts the game event surface over HTTP. Routes are
// deliberately thin: decode the JSON body into a game event, hand it to
// the event handler, and render the response or the error.
package httpapi

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/handlers/game"
)

// EventHandler processes one inbound game event
type EventHandler interface {
	HandleEvent(ctx context.Context, event *game.GameEvent) (*game.GameEventResponse, error)
}

// Handler exposes the game event surface over HTTP
type Handler struct {
	Events EventHandler
}

// RegisterRoutes mounts the session routes
func (h Handler) RegisterRoutes(s *server.Hertz) {
	api := s.Group("/api/sessions/:session_id")
	api.POST("/actions", h.playerAction)
	api.POST("/rolls", h.diceSubmission)
	api.POST("/retries", h.retry)
}

type actionRequest struct {
	PlayerID    string `json:"player_id"`
	CharacterID string `json:"character_id,omitempty"`
	Text        string `json:"text"`
}

type rollSubmissionRequest struct {
	PlayerID  string `json:"player_id"`
	RequestID string `json:"request_id"`
}

type retryRequest struct {
	PlayerID string `json:"player_id"`
}

type eventResponse struct {
	Status          string           `json:"status"`
	StatusDetail    string           `json:"status_detail,omitempty"`
	Narrative       string           `json:"narrative,omitempty"`
	CombatActive    bool             `json:"combat_active"`
	PendingRequests []pendingRequest `json:"pending_requests,omitempty"`
}

type pendingRequest struct {
	ID           string   `json:"id"`
	CharacterIDs []string `json:"character_ids"`
	Type         string   `json:"type"`
	DiceFormula  string   `json:"dice_formula"`
	Skill        string   `json:"skill,omitempty"`
	Ability      string   `json:"ability,omitempty"`
	DC           *int32   `json:"dc,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

func (h Handler) playerAction(c context.Context, ctx *app.RequestContext) {
	var body actionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, errors.InvalidArgument("invalid json body"))
		return
	}

	resp, err := h.Events.HandleEvent(c, &game.GameEvent{
		Type:      game.EventPlayerAction,
		SessionID: ctx.Param("session_id"),
		PlayerID:  body.PlayerID,
		Action: &game.PlayerAction{
			CharacterID: body.CharacterID,
			Text:        body.Text,
		},
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, newEventResponse(resp))
}

func (h Handler) diceSubmission(c context.Context, ctx *app.RequestContext) {
	var body rollSubmissionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, errors.InvalidArgument("invalid json body"))
		return
	}

	resp, err := h.Events.HandleEvent(c, &game.GameEvent{
		Type:      game.EventPlayerDiceSubmission,
		SessionID: ctx.Param("session_id"),
		PlayerID:  body.PlayerID,
		DiceSubmission: &game.DiceSubmission{
			RequestID: body.RequestID,
		},
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, newEventResponse(resp))
}

func (h Handler) retry(c context.Context, ctx *app.RequestContext) {
	var body retryRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, errors.InvalidArgument("invalid json body"))
		return
	}

	resp, err := h.Events.HandleEvent(c, &game.GameEvent{
		Type:      game.EventRetryRequest,
		SessionID: ctx.Param("session_id"),
		PlayerID:  body.PlayerID,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, newEventResponse(resp))
}

func newEventResponse(out *game.GameEventResponse) eventResponse {
	resp := eventResponse{
		Status:       out.Status,
		StatusDetail: out.StatusDetail,
		Narrative:    out.Narrative,
		CombatActive: out.CombatActive,
	}
	for _, req := range out.PendingRequests {
		resp.PendingRequests = append(resp.PendingRequests, newPendingRequest(req))
	}
	return resp
}

func newPendingRequest(req *entities.DiceRequest) pendingRequest {
	return pendingRequest{
		ID:           req.ID,
		CharacterIDs: req.CharacterIDs,
		Type:         string(req.Type),
		DiceFormula:  req.DiceFormula,
		Skill:        req.Skill,
		Ability:      req.Ability,
		DC:           req.DC,
		Reason:       req.Reason,
	}
}

// decodeJSON tolerates an empty body; required fields are enforced
// downstream by the event handler
func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeError(ctx *app.RequestContext, err error) {
	code := errors.GetCode(err)
	writeErrorBody(ctx, code.HTTPStatus(), code.String(), errors.GetMessage(err))
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
