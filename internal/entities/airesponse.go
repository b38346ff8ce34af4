package entities

// AIResponse is the structured document the AI game master returns for
// one prompt. Character references inside it are free-form identifiers
// (IDs, names, or group keywords) until the resolver canonicalizes them.
//
// JSON tags define the wire contract with the model; everything is
// optional except the narrative.
type AIResponse struct {
	Narrative string `json:"narrative"`

	Location *LocationUpdate `json:"location,omitempty"`

	HPChanges        []HPChange        `json:"hp_changes,omitempty"`
	ConditionAdds    []ConditionChange `json:"condition_adds,omitempty"`
	ConditionRemoves []ConditionChange `json:"condition_removes,omitempty"`
	GoldChanges      []GoldChange      `json:"gold_changes,omitempty"`
	InventoryAdds    []InventoryChange `json:"inventory_adds,omitempty"`
	InventoryRemoves []InventoryChange `json:"inventory_removes,omitempty"`
	QuestUpdates     []QuestUpdate     `json:"quest_updates,omitempty"`

	CombatantRemovals []CombatantRemoval `json:"combatant_removals,omitempty"`
	CombatStart       *CombatStart       `json:"combat_start,omitempty"`
	CombatEnd         *CombatEnd         `json:"combat_end,omitempty"`

	RollRequests []RollRequest `json:"dice_requests,omitempty"`

	// nil when the AI said nothing about the turn
	EndTurn *bool `json:"end_turn,omitempty"`
}

// LocationUpdate moves the party to a new location
type LocationUpdate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HPChange applies a hit point delta to one character
type HPChange struct {
	CharacterID string `json:"character_id"`

	// Negative for damage, positive for healing
	Change int32 `json:"change"`

	// Attribution; Source is the free-text fallback
	Source     string `json:"source,omitempty"`
	Attacker   string `json:"attacker,omitempty"`
	Weapon     string `json:"weapon,omitempty"`
	DamageType string `json:"damage_type,omitempty"`
	Critical   bool   `json:"critical,omitempty"`
}

// ConditionChange adds or removes one condition on one character
type ConditionChange struct {
	CharacterID string `json:"character_id"`
	Condition   string `json:"condition"`
}

// GoldChange adjusts a party member's gold
type GoldChange struct {
	CharacterID string `json:"character_id"`
	Amount      int32  `json:"amount"`
	Source      string `json:"source,omitempty"`
}

// InventoryChange adds or removes an item for a party member
type InventoryChange struct {
	CharacterID string `json:"character_id"`
	ItemName    string `json:"item_name"`

	// Zero means one
	Quantity int32 `json:"quantity,omitempty"`
}

// QuestUpdate creates or advances a quest
type QuestUpdate struct {
	QuestID     string `json:"quest_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// CombatantRemoval takes a combatant out of the turn order entirely
type CombatantRemoval struct {
	CharacterID string `json:"character_id"`
	Reason      string `json:"reason,omitempty"`
}

// CombatStart begins an encounter, or reinforces a running one
type CombatStart struct {
	Combatants []NewCombatant `json:"combatants"`
}

// NewCombatant describes a GM-controlled combatant entering combat
type NewCombatant struct {
	// Optional; generated when absent
	ID string `json:"id,omitempty"`

	Name               string `json:"name"`
	MaxHP              int32  `json:"max_hp"`
	ArmorClass         int32  `json:"armor_class"`
	InitiativeModifier int32  `json:"initiative_modifier,omitempty"`
}

// CombatEnd ends the encounter
type CombatEnd struct {
	Reason string `json:"reason,omitempty"`
}

// RollRequest asks characters for dice rolls. Targets are free-form
// identifiers resolved against the session.
type RollRequest struct {
	CharacterIDs []string `json:"character_ids"`
	RollType     RollType `json:"roll_type"`
	DiceFormula  string   `json:"dice_formula"`
	Skill        string   `json:"skill,omitempty"`
	Ability      string   `json:"ability,omitempty"`
	DC           *int32   `json:"dc,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}
