// Package roll implements the dice roll primitive: parse a notation,
// roll it, and report the outcome with a per-die breakdown.
package roll

//go:generate mockgen -destination=mock/mock_service.go -package=rollmock github.com/KirkDiggler/gamemaster-api/internal/orchestrators/roll Service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/errors"
	"github.com/KirkDiggler/gamemaster-api/internal/pkg/clock"
)

// Regex for dice notation like "2d6", "1d20+5", "4d8-2"
var diceNotationRegex = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// Service defines the interface for performing rolls
type Service interface {
	PerformRoll(ctx context.Context, input *PerformRollInput) (*PerformRollOutput, error)
}

// PerformRollInput identifies who rolls what
type PerformRollInput struct {
	// Request this roll answers, if any
	RequestID string

	CharacterID   string
	CharacterName string

	RollType    entities.RollType
	DiceFormula string
}

// PerformRollOutput carries the completed roll
type PerformRollOutput struct {
	Outcome *entities.RollOutcome
}

// Config holds the dependencies for the roll orchestrator
type Config struct {
	Roller dice.Roller
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

type orchestrator struct {
	roller dice.Roller
	clock  clock.Clock
}

// NewOrchestrator creates a new roll orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		roller: cfg.Roller,
		clock:  cfg.Clock,
	}, nil
}

// PerformRoll parses the formula, rolls it, and builds the outcome
func (o *orchestrator) PerformRoll(
	ctx context.Context, input *PerformRollInput,
) (*PerformRollOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("character ID is required")
	}

	count, size, modifier, err := parseDiceNotation(input.DiceFormula)
	if err != nil {
		return nil, err
	}

	rolls, err := o.roller.RollN(count, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %s", input.DiceFormula)
	}

	var diceTotal int32
	values := make([]int32, 0, len(rolls))
	for _, r := range rolls {
		values = append(values, int32(r))
		diceTotal += int32(r)
	}
	total := diceTotal + modifier

	outcome := &entities.RollOutcome{
		RequestID:     input.RequestID,
		CharacterID:   input.CharacterID,
		CharacterName: input.CharacterName,
		Type:          input.RollType,
		Formula:       input.DiceFormula,
		Total:         total,
		Dice:          values,
		Modifier:      modifier,
		ResultString:  formatResult(input.DiceFormula, values, modifier, total),
		RolledAt:      o.clock.Now(),
	}

	return &PerformRollOutput{Outcome: outcome}, nil
}

// parseDiceNotation parses notation like "2d6+3" into count, size and modifier
func parseDiceNotation(notation string) (count, size int, modifier int32, err error) {
	matches := diceNotationRegex.FindStringSubmatch(strings.ToLower(strings.TrimSpace(notation)))
	if len(matches) != 4 {
		return 0, 0, 0, errors.InvalidArgumentf(
			"invalid dice notation: %s (expected format: XdY or XdY+Z)", notation)
	}

	count, err = strconv.Atoi(matches[1])
	if err != nil {
		return 0, 0, 0, errors.InvalidArgumentf("invalid dice count in notation: %s", notation)
	}

	size, err = strconv.Atoi(matches[2])
	if err != nil {
		return 0, 0, 0, errors.InvalidArgumentf("invalid die size in notation: %s", notation)
	}

	if matches[3] != "" {
		mod, modErr := strconv.Atoi(matches[3])
		if modErr != nil {
			return 0, 0, 0, errors.InvalidArgumentf("invalid modifier in notation: %s", notation)
		}
		modifier = int32(mod)
	}

	if count <= 0 || size <= 0 {
		return 0, 0, 0, errors.InvalidArgumentf("dice count and size must be positive: %s", notation)
	}

	return count, size, modifier, nil
}

// formatResult builds a readable form like "2d6+3: [4, 5] +3 = 12"
func formatResult(formula string, values []int32, modifier, total int32) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(int(v)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: [%s]", formula, strings.Join(parts, ", "))
	if modifier > 0 {
		fmt.Fprintf(&sb, " +%d", modifier)
	} else if modifier < 0 {
		fmt.Fprintf(&sb, " %d", modifier)
	}
	fmt.Fprintf(&sb, " = %d", total)
	return sb.String()
}
