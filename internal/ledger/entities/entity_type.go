package entities

// EntityType discriminates the independent legacy identifier namespaces.
// Every ledger query is scoped by entity type; a process instance and an
// incident may share the same legacy identifier string without colliding.
type EntityType string

const (
	EntityProcessDefinition      EntityType = "process-definition"
	EntityProcessInstance        EntityType = "process-instance"
	EntityVariable               EntityType = "variable"
	EntityUserTask               EntityType = "user-task"
	EntityIncident               EntityType = "incident"
	EntityDecisionDefinition     EntityType = "decision-definition"
	EntityDecisionInstance       EntityType = "decision-instance"
	EntityHistoryProcessInstance EntityType = "history-process-instance"
)

// AllEntityTypes lists every known entity type in migration order.
// Definitions come before instances, instances before their dependents,
// because converter validation may require the owning entity's ledger entry.
var AllEntityTypes = []EntityType{
	EntityProcessDefinition,
	EntityDecisionDefinition,
	EntityProcessInstance,
	EntityVariable,
	EntityUserTask,
	EntityIncident,
	EntityDecisionInstance,
	EntityHistoryProcessInstance,
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, known := range AllEntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresCompensation reports whether a target-side object of this type must
// be rolled back when the ledger write recording it fails. Runtime objects
// (process instances) keep executing on the target engine if orphaned, so they
// must be compensated; immutable deployments and history records are harmless
// to leave behind and are deduplicated by the next run instead.
func (t EntityType) RequiresCompensation() bool {
	switch t {
	case EntityProcessInstance:
		return true
	default:
		return false
	}
}

// ParseEntityType converts a string to an EntityType, reporting whether it is known.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(s)
	return t, t.Valid()
}
