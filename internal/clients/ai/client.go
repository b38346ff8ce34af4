// Package ai defines the client interface for the AI game master.
// The transport (model provider, prompt assembly) lives outside this
// repo; orchestration only needs the structured response back.
package ai

//go:generate mockgen -destination=mock/mock_client.go -package=aimock github.com/KirkDiggler/gamemaster-api/internal/clients/ai Client

import (
	"context"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

// Message roles understood by the AI client
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateResponseInput carries the prompt for one GM turn
type GenerateResponseInput struct {
	SessionID string
	Messages  []Message
}

// GenerateResponseOutput carries the decoded structured response
type GenerateResponseOutput struct {
	Response *entities.AIResponse
}

// Client generates game master responses
type Client interface {
	GenerateResponse(ctx context.Context, input *GenerateResponseInput) (*GenerateResponseOutput, error)
}
