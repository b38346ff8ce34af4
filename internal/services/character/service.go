// Package character provides the service interface for character and
// campaign lookups. The implementation lives with the campaign system;
// this repo consumes it.
package character

import (
	"context"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
)

//go:generate mockgen -destination=mock/mock_service.go -package=charactermock github.com/KirkDiggler/gamemaster-api/internal/services/character Service

// Service defines the character lookup interface
type Service interface {
	GetCharacter(ctx context.Context, input *GetCharacterInput) (*GetCharacterOutput, error)
	GetCharacterName(ctx context.Context, input *GetCharacterNameInput) (*GetCharacterNameOutput, error)
}

// GetCharacterInput identifies the character to fetch
type GetCharacterInput struct {
	CharacterID string
}

// GetCharacterOutput carries the static sheet and the live state
type GetCharacterOutput struct {
	Template *entities.CharacterTemplate
	Instance *entities.CharacterInstance
}

// GetCharacterNameInput identifies the character to name
type GetCharacterNameInput struct {
	CharacterID string
}

// GetCharacterNameOutput carries the display name
type GetCharacterNameOutput struct {
	Name string
}
