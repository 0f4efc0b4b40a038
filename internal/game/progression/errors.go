package progression

import (
	"fmt"

	"github.com/udisondev/survivalskills/internal/model"
)

// Reason is the machine-readable cause of a rejected unlock.
type Reason string

const (
	ReasonSlotOccupied        Reason = "slot already occupied"
	ReasonInsufficientPoints  Reason = "insufficient points"
	ReasonMissingPrerequisite Reason = "missing prerequisite"
	ReasonMaxUltimates        Reason = "max ultimates"
	ReasonBudgetExceeded      Reason = "budget exceeded"
	ReasonUnknownSkill        Reason = "unknown skill"
	ReasonInvalidSlot         Reason = "invalid slot"
	ReasonSkillMismatch       Reason = "skill does not belong to slot"
)

// ValidationError is returned when an unlock precondition fails.
// The progression is never mutated when a ValidationError is returned.
type ValidationError struct {
	Reason Reason
	Tree   model.Tree
	Tier   model.Tier
	Skill  model.SkillID
	Need   int32
	Have   int32
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonInsufficientPoints:
		return fmt.Sprintf("%s: %s %s costs %d, have %d", e.Reason, e.Tree, e.Tier, e.Need, e.Have)
	case ReasonBudgetExceeded:
		return fmt.Sprintf("%s: spending %d would exceed budget %d", e.Reason, e.Need, e.Have)
	case ReasonMaxUltimates:
		return fmt.Sprintf("%s: already have %d of %d", e.Reason, e.Have, e.Need)
	case ReasonMissingPrerequisite:
		prev, _ := e.Tier.Prev()
		return fmt.Sprintf("%s: %s %s requires %s", e.Reason, e.Tree, e.Tier, prev)
	case ReasonUnknownSkill:
		return fmt.Sprintf("%s: %q", e.Reason, e.Skill)
	case ReasonSkillMismatch:
		return fmt.Sprintf("%s: %q is not a %s %s skill", e.Reason, e.Skill, e.Tree, e.Tier)
	default:
		return fmt.Sprintf("%s: %s %s", e.Reason, e.Tree, e.Tier)
	}
}

// Is matches another *ValidationError with the same Reason,
// so errors.Is(err, &ValidationError{Reason: ReasonMaxUltimates}) works.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}
