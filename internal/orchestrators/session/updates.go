package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/gamemaster-api/internal/entities"
	"github.com/KirkDiggler/gamemaster-api/internal/events"
)

// applyStateUpdates applies the response's update lists in dependency
// order: combat must exist before HP changes can hit combatants, and
// removals must land before combat can end. Each update resolves its
// own targets; a failed update skips, never aborting the batch.
//
// Returns whether combat started during this pass, the one-shot signal
// the dice handler uses to decide forced initiative.
func (o *orchestrator) applyStateUpdates(ctx context.Context, p *pass, resp *entities.AIResponse) bool {
	combatStarted := o.applyCombatStart(ctx, p, resp.CombatStart)

	o.applyHPChanges(ctx, p, resp.HPChanges)
	o.applyConditionChanges(ctx, p, resp.ConditionAdds, true)
	o.applyConditionChanges(ctx, p, resp.ConditionRemoves, false)
	o.applyGoldChanges(ctx, p, resp.GoldChanges)
	o.applyInventoryAdds(ctx, p, resp.InventoryAdds)
	o.applyInventoryRemoves(ctx, p, resp.InventoryRemoves)
	o.applyQuestUpdates(ctx, p, resp.QuestUpdates)
	o.applyCombatantRemovals(ctx, p, resp.CombatantRemovals)
	o.applyCombatEnd(ctx, p, resp.CombatEnd)
	o.checkAutoEnd(ctx, p)

	return combatStarted
}

// applyCombatStart begins an encounter, or reinforces a running one.
// Only a fresh start returns true.
func (o *orchestrator) applyCombatStart(ctx context.Context, p *pass, start *entities.CombatStart) bool {
	if start == nil {
		return false
	}

	if p.session.CombatActive() {
		o.reinforceCombat(ctx, p, start.Combatants)
		return false
	}

	combatants := make([]*entities.Combatant, 0, len(p.session.Party)+len(start.Combatants))
	for _, id := range sortedPartyIDs(p.session) {
		combatants = append(combatants, partyCombatant(p.session.Party[id]))
	}
	for i := range start.Combatants {
		npc := o.buildNPCCombatant(ctx, p, &start.Combatants[i])
		o.recordKnownNPC(p, npc)
		combatants = append(combatants, npc)
	}

	if len(combatants) == 0 {
		slog.Warn("combat start with no combatants", "session_id", p.session.ID)
		o.publish(ctx, &events.GameError{
			Meta:    o.meta(p),
			Code:    "combat_start_empty",
			Message: "combat cannot start without combatants",
		})
		return false
	}

	p.session.Combat = &entities.CombatState{
		IsActive:         true,
		Combatants:       combatants,
		CurrentTurnIndex: 0,
		Round:            1,
	}

	slog.Info("combat started",
		"session_id", p.session.ID,
		"combatant_count", len(combatants),
	)
	o.publish(ctx, &events.CombatStarted{
		Meta:       o.meta(p),
		Combatants: combatantSummaries(combatants),
	})

	return true
}

// reinforceCombat appends new combatants without resetting the turn
// order or the round.
func (o *orchestrator) reinforceCombat(ctx context.Context, p *pass, newCombatants []entities.NewCombatant) {
	combat := p.session.Combat
	for i := range newCombatants {
		npc := o.buildNPCCombatant(ctx, p, &newCombatants[i])
		if combat.CombatantByID(npc.ID) != nil {
			slog.Warn("reinforcement already in combat",
				"session_id", p.session.ID,
				"combatant_id", npc.ID,
			)
			continue
		}
		o.recordKnownNPC(p, npc)
		combat.Combatants = append(combat.Combatants, npc)
		slog.Info("combatant joined",
			"session_id", p.session.ID,
			"combatant_id", npc.ID,
			"name", npc.Name,
		)
	}
}

// partyCombatant enters a party member into combat from its live state
func partyCombatant(inst *entities.CharacterInstance) *entities.Combatant {
	return &entities.Combatant{
		ID:                 inst.ID,
		Name:               inst.Name,
		Initiative:         entities.InitiativeUnset,
		InitiativeModifier: inst.InitiativeModifier,
		CurrentHP:          inst.CurrentHP,
		MaxHP:              inst.MaxHP,
		ArmorClass:         inst.ArmorClass,
		Conditions:         append([]string(nil), inst.Conditions...),
		Kind:               entities.CombatantPlayer,
	}
}

// buildNPCCombatant creates a GM-controlled combatant, tagging it with
// an SRD content key when the name resolves. Content resolution is
// best-effort; a miss leaves the key empty.
func (o *orchestrator) buildNPCCombatant(ctx context.Context, p *pass, nc *entities.NewCombatant) *entities.Combatant {
	id := nc.ID
	if id == "" {
		id = o.idGen.Generate()
	}

	maxHP := nc.MaxHP
	if maxHP <= 0 {
		slog.Warn("combatant has no hit points, defaulting to 1",
			"session_id", p.session.ID,
			"name", nc.Name,
		)
		maxHP = 1
	}

	combatant := &entities.Combatant{
		ID:                 id,
		Name:               nc.Name,
		Initiative:         entities.InitiativeUnset,
		InitiativeModifier: nc.InitiativeModifier,
		CurrentHP:          maxHP,
		MaxHP:              maxHP,
		ArmorClass:         nc.ArmorClass,
		Kind:               entities.CombatantNonPlayer,
	}

	if o.content != nil {
		key, err := o.content.ResolveMonsterKey(ctx, nc.Name)
		if err != nil {
			slog.Debug("no content match for combatant",
				"name", nc.Name,
				"error", err,
			)
		} else {
			combatant.ContentKey = key
		}
	}

	return combatant
}

func (o *orchestrator) recordKnownNPC(p *pass, npc *entities.Combatant) {
	if p.session.KnownNPCs == nil {
		p.session.KnownNPCs = make(map[string]*entities.KnownNPC)
	}
	if _, known := p.session.KnownNPCs[npc.ID]; known {
		return
	}
	firstSeen := ""
	if p.session.CurrentLocation != nil {
		firstSeen = p.session.CurrentLocation.Name
	}
	p.session.KnownNPCs[npc.ID] = &entities.KnownNPC{
		ID:          npc.ID,
		Name:        npc.Name,
		FirstSeenAt: firstSeen,
	}
}

func (o *orchestrator) applyHPChanges(ctx context.Context, p *pass, changes []entities.HPChange) {
	for i := range changes {
		hc := &changes[i]
		for _, id := range o.resolveTargets(ctx, p, hc.CharacterID) {
			o.applyHPChange(ctx, p, id, hc)
		}
	}
}

// applyHPChange clamps the result to [0, max] and mirrors it between
// the combat tracker and the party roster.
func (o *orchestrator) applyHPChange(ctx context.Context, p *pass, id string, hc *entities.HPChange) {
	if p.session.CombatActive() {
		if c := p.session.Combat.CombatantByID(id); c != nil {
			oldHP := c.CurrentHP
			c.CurrentHP = clampHP(oldHP+hc.Change, c.MaxHP)

			becameDefeated := false
			if !c.IsPlayer() && c.CurrentHP == 0 {
				becameDefeated = c.AddCondition(entities.ConditionDefeated)
			}
			if inst := p.session.PartyMember(id); inst != nil {
				inst.CurrentHP = c.CurrentHP
			}

			o.publish(ctx, &events.CombatantHPChanged{
				Meta:        o.meta(p),
				CombatantID: c.ID,
				Name:        c.Name,
				OldHP:       oldHP,
				NewHP:       c.CurrentHP,
				MaxHP:       c.MaxHP,
				Attribution: attribution(hc),
				IsPlayer:    c.IsPlayer(),
				Defeated:    c.IsDefeated(),
			})
			if becameDefeated {
				o.publish(ctx, &events.CombatantStatusChanged{
					Meta:        o.meta(p),
					CombatantID: c.ID,
					Name:        c.Name,
					Condition:   entities.ConditionDefeated,
					Applied:     true,
					Conditions:  append([]string(nil), c.Conditions...),
					Defeated:    true,
				})
			}
			return
		}
	}

	inst := p.session.PartyMember(id)
	if inst == nil {
		slog.Warn("HP change target not found",
			"session_id", p.session.ID,
			"character_id", id,
		)
		return
	}

	oldHP := inst.CurrentHP
	inst.CurrentHP = clampHP(oldHP+hc.Change, inst.MaxHP)

	detail := fmt.Sprintf("HP %d -> %d", oldHP, inst.CurrentHP)
	if attr := attribution(hc); attr != "" {
		detail += " (" + attr + ")"
	}
	o.publish(ctx, &events.PartyMemberUpdated{
		Meta:        o.meta(p),
		CharacterID: inst.ID,
		Name:        inst.Name,
		Field:       "hp",
		Detail:      detail,
	})
}

func clampHP(hp, maxHP int32) int32 {
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}

// attribution describes what caused an HP change, preferring the
// structured attacker fields over the free-text source.
func attribution(hc *entities.HPChange) string {
	if hc.Attacker == "" {
		return hc.Source
	}
	var sb strings.Builder
	sb.WriteString(hc.Attacker)
	if hc.Weapon != "" {
		sb.WriteString(" using ")
		sb.WriteString(hc.Weapon)
	}
	if hc.DamageType != "" {
		fmt.Fprintf(&sb, " (%s)", hc.DamageType)
	}
	if hc.Critical {
		sb.WriteString(" [critical]")
	}
	return sb.String()
}

func (o *orchestrator) applyConditionChanges(ctx context.Context, p *pass, changes []entities.ConditionChange, add bool) {
	for i := range changes {
		cc := &changes[i]
		if cc.Condition == "" {
			slog.Warn("condition change without a condition",
				"session_id", p.session.ID,
				"character_id", cc.CharacterID,
			)
			continue
		}
		for _, id := range o.resolveTargets(ctx, p, cc.CharacterID) {
			o.applyConditionChange(ctx, p, id, cc.Condition, add)
		}
	}
}

func (o *orchestrator) applyConditionChange(ctx context.Context, p *pass, id, condition string, add bool) {
	var combatant *entities.Combatant
	if p.session.CombatActive() {
		combatant = p.session.Combat.CombatantByID(id)
	}
	inst := p.session.PartyMember(id)
	if combatant == nil && inst == nil {
		slog.Warn("condition change target not found",
			"session_id", p.session.ID,
			"character_id", id,
		)
		return
	}

	changed := false
	if combatant != nil {
		if add {
			changed = combatant.AddCondition(condition)
		} else {
			changed = combatant.RemoveCondition(condition)
		}
	}
	if inst != nil {
		if add {
			instChanged := inst.AddCondition(condition)
			changed = changed || instChanged
		} else {
			instChanged := inst.RemoveCondition(condition)
			changed = changed || instChanged
		}
	}
	if !changed {
		slog.Debug("condition change was a no-op",
			"session_id", p.session.ID,
			"character_id", id,
			"condition", condition,
			"add", add,
		)
	}

	evt := &events.CombatantStatusChanged{
		Meta:        o.meta(p),
		CombatantID: id,
		Condition:   condition,
		Applied:     add,
	}
	if combatant != nil {
		evt.Name = combatant.Name
		evt.Conditions = append([]string(nil), combatant.Conditions...)
		evt.Defeated = combatant.IsDefeated()
	} else {
		evt.Name = inst.Name
		evt.Conditions = append([]string(nil), inst.Conditions...)
		evt.Defeated = inst.IsDefeated()
	}
	o.publish(ctx, evt)
}

func (o *orchestrator) applyGoldChanges(ctx context.Context, p *pass, changes []entities.GoldChange) {
	for i := range changes {
		gc := &changes[i]
		for _, id := range o.resolveTargets(ctx, p, gc.CharacterID) {
			inst := p.session.PartyMember(id)
			if inst == nil {
				slog.Warn("gold change targets a non-party entity",
					"session_id", p.session.ID,
					"character_id", id,
				)
				continue
			}

			oldGold := inst.Gold
			inst.Gold += gc.Amount
			if inst.Gold < 0 {
				inst.Gold = 0
			}

			detail := fmt.Sprintf("gold %d -> %d", oldGold, inst.Gold)
			if gc.Source != "" {
				detail += " (" + gc.Source + ")"
			}
			o.publish(ctx, &events.PartyMemberUpdated{
				Meta:        o.meta(p),
				CharacterID: inst.ID,
				Name:        inst.Name,
				Field:       "gold",
				Detail:      detail,
			})
		}
	}
}

func (o *orchestrator) applyInventoryAdds(ctx context.Context, p *pass, changes []entities.InventoryChange) {
	for i := range changes {
		ic := &changes[i]
		if ic.ItemName == "" {
			slog.Warn("inventory add without an item name",
				"session_id", p.session.ID,
				"character_id", ic.CharacterID,
			)
			continue
		}
		quantity := ic.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		for _, id := range o.resolveTargets(ctx, p, ic.CharacterID) {
			inst := p.session.PartyMember(id)
			if inst == nil {
				slog.Warn("inventory add targets a non-party entity",
					"session_id", p.session.ID,
					"character_id", id,
				)
				continue
			}

			added := false
			for j := range inst.Inventory {
				if strings.EqualFold(inst.Inventory[j].Name, ic.ItemName) {
					inst.Inventory[j].Quantity += quantity
					added = true
					break
				}
			}
			if !added {
				inst.Inventory = append(inst.Inventory, entities.InventoryItem{
					Name:     ic.ItemName,
					Quantity: quantity,
				})
			}

			o.publish(ctx, &events.ItemAdded{
				Meta:        o.meta(p),
				CharacterID: inst.ID,
				Name:        inst.Name,
				ItemName:    ic.ItemName,
				Quantity:    quantity,
			})
		}
	}
}

func (o *orchestrator) applyInventoryRemoves(ctx context.Context, p *pass, changes []entities.InventoryChange) {
	for i := range changes {
		ic := &changes[i]
		if ic.ItemName == "" {
			slog.Warn("inventory remove without an item name",
				"session_id", p.session.ID,
				"character_id", ic.CharacterID,
			)
			continue
		}
		quantity := ic.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		for _, id := range o.resolveTargets(ctx, p, ic.CharacterID) {
			inst := p.session.PartyMember(id)
			if inst == nil {
				slog.Warn("inventory remove targets a non-party entity",
					"session_id", p.session.ID,
					"character_id", id,
				)
				continue
			}

			found := -1
			for j := range inst.Inventory {
				if strings.EqualFold(inst.Inventory[j].Name, ic.ItemName) {
					found = j
					break
				}
			}
			if found < 0 {
				slog.Warn("inventory remove for an item not carried",
					"session_id", p.session.ID,
					"character_id", id,
					"item", ic.ItemName,
				)
				continue
			}

			removed := quantity
			if inst.Inventory[found].Quantity < removed {
				removed = inst.Inventory[found].Quantity
			}
			inst.Inventory[found].Quantity -= removed
			if inst.Inventory[found].Quantity <= 0 {
				inst.Inventory = append(inst.Inventory[:found], inst.Inventory[found+1:]...)
			}

			o.publish(ctx, &events.ItemRemoved{
				Meta:        o.meta(p),
				CharacterID: inst.ID,
				Name:        inst.Name,
				ItemName:    ic.ItemName,
				Quantity:    removed,
			})
		}
	}
}

// applyQuestUpdates upserts quests by ID
func (o *orchestrator) applyQuestUpdates(ctx context.Context, p *pass, updates []entities.QuestUpdate) {
	for i := range updates {
		qu := &updates[i]
		if qu.QuestID == "" {
			slog.Warn("quest update without a quest ID", "session_id", p.session.ID)
			continue
		}
		status, ok := parseQuestStatus(qu.Status)
		if !ok {
			slog.Warn("quest update with unknown status",
				"session_id", p.session.ID,
				"quest_id", qu.QuestID,
				"status", qu.Status,
			)
			continue
		}

		if p.session.ActiveQuests == nil {
			p.session.ActiveQuests = make(map[string]*entities.Quest)
		}
		quest, exists := p.session.ActiveQuests[qu.QuestID]
		if !exists {
			quest = &entities.Quest{
				ID:     qu.QuestID,
				Status: entities.QuestStatusActive,
			}
			p.session.ActiveQuests[qu.QuestID] = quest
		}

		if qu.Title != "" {
			quest.Title = qu.Title
		}
		if qu.Description != "" {
			quest.Description = qu.Description
		}
		if status != "" {
			quest.Status = status
		}
		quest.UpdatedAt = o.clock.Now()

		o.publish(ctx, &events.QuestUpdated{
			Meta:    o.meta(p),
			QuestID: quest.ID,
			Title:   quest.Title,
			Status:  quest.Status,
		})
	}
}

// parseQuestStatus accepts the empty string, meaning keep the current
// status.
func parseQuestStatus(status string) (entities.QuestStatus, bool) {
	switch entities.QuestStatus(strings.ToLower(status)) {
	case "":
		return "", true
	case entities.QuestStatusActive:
		return entities.QuestStatusActive, true
	case entities.QuestStatusCompleted:
		return entities.QuestStatusCompleted, true
	case entities.QuestStatusFailed:
		return entities.QuestStatusFailed, true
	}
	return "", false
}

func (o *orchestrator) applyCombatantRemovals(ctx context.Context, p *pass, removals []entities.CombatantRemoval) {
	for i := range removals {
		removal := &removals[i]
		for _, id := range o.resolveTargets(ctx, p, removal.CharacterID) {
			o.removeCombatant(ctx, p, id, removal.Reason)
		}
	}
}

// removeCombatant splices a combatant out of the turn order, keeping
// the current-turn index pointed at the same combatant when possible:
// a removal before it shifts the index down, removing the current
// combatant itself leaves the index in place so the next combatant
// inherits the turn, wrapping to 0 when the index falls off the end.
func (o *orchestrator) removeCombatant(ctx context.Context, p *pass, combatantID, reason string) {
	if !p.session.CombatActive() {
		slog.Warn("combatant removal outside combat",
			"session_id", p.session.ID,
			"combatant_id", combatantID,
		)
		return
	}
	combat := p.session.Combat

	idx := -1
	for i, c := range combat.Combatants {
		if c.ID == combatantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		slog.Warn("removal target is not an active combatant",
			"session_id", p.session.ID,
			"combatant_id", combatantID,
		)
		return
	}

	removed := combat.Combatants[idx]
	combat.Combatants = append(combat.Combatants[:idx], combat.Combatants[idx+1:]...)

	switch {
	case int32(idx) < combat.CurrentTurnIndex:
		combat.CurrentTurnIndex--
	case int(combat.CurrentTurnIndex) >= len(combat.Combatants):
		combat.CurrentTurnIndex = 0
	}

	slog.Info("combatant removed",
		"session_id", p.session.ID,
		"combatant_id", removed.ID,
		"name", removed.Name,
		"reason", reason,
	)
	o.publish(ctx, &events.CombatantRemoved{
		Meta:        o.meta(p),
		CombatantID: removed.ID,
		Name:        removed.Name,
		Reason:      reason,
	})
}

// applyCombatEnd ends the encounter, unless enemies still stand: an
// end with living non-player combatants is the AI narrating ahead of
// the state, so it is rejected and the state left untouched.
func (o *orchestrator) applyCombatEnd(ctx context.Context, p *pass, end *entities.CombatEnd) {
	if end == nil {
		return
	}
	if !p.session.CombatActive() {
		slog.Warn("combat end without active combat", "session_id", p.session.ID)
		o.publish(ctx, &events.GameError{
			Meta:    o.meta(p),
			Code:    "combat_not_active",
			Message: "combat_end received outside combat",
		})
		return
	}

	if living := p.session.Combat.LivingNonPlayers(); len(living) > 0 {
		slog.Warn("rejecting combat end, enemies still standing",
			"session_id", p.session.ID,
			"living_count", len(living),
		)
		o.publish(ctx, &events.GameError{
			Meta:    o.meta(p),
			Code:    "combat_end_rejected",
			Message: fmt.Sprintf("combat cannot end: %d enemies still standing", len(living)),
		})
		return
	}

	o.endCombat(ctx, p, end.Reason)
}

// checkAutoEnd ends combat automatically once no living non-player
// combatant remains and the AI did not end it explicitly.
func (o *orchestrator) checkAutoEnd(ctx context.Context, p *pass) {
	if !p.session.CombatActive() {
		return
	}
	if len(p.session.Combat.LivingNonPlayers()) > 0 {
		return
	}
	slog.Info("no enemies remain, ending combat", "session_id", p.session.ID)
	o.endCombat(ctx, p, "victory")
}

// endCombat resets the combat state and the NPC roll buffer
func (o *orchestrator) endCombat(ctx context.Context, p *pass, reason string) {
	rounds := int32(0)
	if p.session.Combat != nil {
		rounds = p.session.Combat.Round
	}
	p.session.Combat = nil
	p.session.NPCRollBuffer = nil

	slog.Info("combat ended",
		"session_id", p.session.ID,
		"reason", reason,
		"rounds", rounds,
	)
	o.publish(ctx, &events.CombatEnded{
		Meta:   o.meta(p),
		Reason: reason,
		Rounds: rounds,
	})
}

func combatantSummaries(combatants []*entities.Combatant) []events.CombatantSummary {
	out := make([]events.CombatantSummary, 0, len(combatants))
	for _, c := range combatants {
		out = append(out, events.CombatantSummary{
			ID:         c.ID,
			Name:       c.Name,
			Kind:       c.Kind,
			CurrentHP:  c.CurrentHP,
			MaxHP:      c.MaxHP,
			Initiative: c.Initiative,
		})
	}
	return out
}
