package entities

import "time"

// RollType classifies what a dice roll is for
type RollType string

// Roll types
const (
	RollTypeAttack       RollType = "attack"
	RollTypeDamage       RollType = "damage"
	RollTypeInitiative   RollType = "initiative"
	RollTypeSavingThrow  RollType = "saving_throw"
	RollTypeAbilityCheck RollType = "ability_check"
	RollTypeSkillCheck   RollType = "skill_check"
	RollTypeCustom       RollType = "custom"
)

// DiceRequest asks one or more characters for a roll. Player requests
// persist on the session until the rolls come back; NPC requests are
// resolved immediately and never stored.
type DiceRequest struct {
	ID string

	// Canonical character IDs after target resolution
	CharacterIDs []string

	Type RollType

	// Dice notation such as "1d20+5"
	DiceFormula string

	// Optional qualifiers for check and save rolls
	Skill   string
	Ability string

	// Difficulty class when the GM set one; nil means none
	DC *int32

	Reason string

	CreatedAt time.Time
}

// RollOutcome is the result of performing one roll for one character
type RollOutcome struct {
	// ID of the DiceRequest this roll answers, if any
	RequestID string

	CharacterID   string
	CharacterName string

	Type    RollType
	Formula string

	// Final result after modifiers
	Total int32

	// Individual die values before the modifier
	Dice []int32

	// Flat modifier applied after the dice
	Modifier int32

	// Human-readable form such as "2d6+3: [4, 5] +3 = 12"
	ResultString string

	RolledAt time.Time
}
