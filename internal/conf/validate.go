package conf

import (
	"fmt"
	"strings"
)

// ValidCompensationPolicies lists the accepted compensation policy names.
var ValidCompensationPolicies = []string{"cancel", "delete", "leave"}

// ValidateSettings checks settings for invalid combinations before any
// database connection is attempted.
func ValidateSettings(settings *Settings) error {
	if settings.Ledger.SQLite.Enabled && settings.Ledger.MySQL.Enabled {
		return fmt.Errorf("ledger: sqlite and mysql cannot both be enabled")
	}
	if !settings.Ledger.SQLite.Enabled && !settings.Ledger.MySQL.Enabled {
		return fmt.Errorf("ledger: no database enabled")
	}

	if settings.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration: batchsize must be positive, got %d", settings.Migration.BatchSize)
	}
	if settings.Migration.PageSize <= 0 {
		return fmt.Errorf("migration: pagesize must be positive, got %d", settings.Migration.PageSize)
	}

	policy := strings.ToLower(settings.Migration.CompensationPolicy)
	valid := false
	for _, p := range ValidCompensationPolicies {
		if policy == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("migration: unknown compensation policy %q", settings.Migration.CompensationPolicy)
	}

	return nil
}
