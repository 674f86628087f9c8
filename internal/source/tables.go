package source

import (
	"fmt"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
)

// tableSpec describes how one entity type maps onto the legacy engine
// schema: which table holds it, its identity column, the column carrying
// its creation timestamp (empty when the schema has none), and an optional
// row filter.
type tableSpec struct {
	table      string
	idColumn   string
	timeColumn string
	filter     string
}

// Legacy engine table layout. Only the columns the migration needs are
// named here; FetchPage surfaces every column of the row to the converter.
var tableSpecs = map[entities.EntityType]tableSpec{
	entities.EntityProcessDefinition: {
		table:    "ACT_RE_PROCDEF",
		idColumn: "ID_",
	},
	entities.EntityProcessInstance: {
		table:    "ACT_RU_EXECUTION",
		idColumn: "ID_",
		// Root executions only; child executions travel with their instance.
		filter: "PARENT_ID_ IS NULL",
	},
	entities.EntityVariable: {
		table:    "ACT_RU_VARIABLE",
		idColumn: "ID_",
	},
	entities.EntityUserTask: {
		table:      "ACT_RU_TASK",
		idColumn:   "ID_",
		timeColumn: "CREATE_TIME_",
	},
	entities.EntityIncident: {
		table:      "ACT_RU_INCIDENT",
		idColumn:   "ID_",
		timeColumn: "INCIDENT_TIMESTAMP_",
	},
	entities.EntityDecisionDefinition: {
		table:    "ACT_RE_DECISION_DEF",
		idColumn: "ID_",
	},
	entities.EntityDecisionInstance: {
		table:      "ACT_HI_DECINST",
		idColumn:   "ID_",
		timeColumn: "EVAL_TIME_",
	},
	entities.EntityHistoryProcessInstance: {
		table:      "ACT_HI_PROCINST",
		idColumn:   "ID_",
		timeColumn: "START_TIME_",
	},
}

func specFor(entityType entities.EntityType) (tableSpec, error) {
	spec, ok := tableSpecs[entityType]
	if !ok {
		return tableSpec{}, fmt.Errorf("no source table mapping for entity type %q", entityType)
	}
	return spec, nil
}
