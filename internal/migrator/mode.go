package migrator

import (
	"fmt"
	"strings"
)

// Mode governs which entities a run processes. Transitions between modes are
// operator-driven: the orchestrator reads the mode once per run and stays on
// it for the run's duration.
type Mode string

const (
	// ModeMigrate processes entities with no ledger entry, or entries with
	// neither a target key nor a skip reason. Known-skipped entities are not
	// re-attempted in this mode.
	ModeMigrate Mode = "migrate"

	// ModeRetrySkipped processes only ledger entries carrying a skip reason.
	ModeRetrySkipped Mode = "retry-skipped"
)

// ParseMode converts an operator-supplied string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMigrate:
		return ModeMigrate, nil
	case ModeRetrySkipped:
		return ModeRetrySkipped, nil
	default:
		return "", fmt.Errorf("unknown migration mode %q", s)
	}
}
