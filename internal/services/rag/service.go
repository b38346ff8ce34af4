// Package rag provides the service interface for the retrieval-augmented
// context subsystem. Refreshes are best-effort: the orchestrator fires
// them after a pass and never waits on the result.
package rag

import "context"

//go:generate mockgen -destination=mock/mock_service.go -package=ragmock github.com/KirkDiggler/gamemaster-api/internal/services/rag Service

// Service defines the prompt-context refresh interface
type Service interface {
	RefreshContext(ctx context.Context, input *RefreshContextInput) error
}

// RefreshContextInput carries the narrative to index
type RefreshContextInput struct {
	SessionID string
	Narrative string
}
