package target

import (
	"context"
	"fmt"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/camunda-community-hub/c7-data-migrator/internal/migrator"
)

// Converter transforms legacy engine rows into target create payloads. It
// resolves cross-entity references through the key lookup, so entity types
// must be migrated in dependency order.
type Converter struct{}

// NewConverter creates the standard converter.
func NewConverter() *Converter {
	return &Converter{}
}

// Convert validates the entity and builds its target payload. A missing
// dependency or unsupported construct is a skip reason, not an error.
func (c *Converter) Convert(ctx context.Context, entity *migrator.SourceEntity, lookup migrator.KeyLookup) (*migrator.TargetRecord, string, error) {
	payload := map[string]any{
		"legacyId": entity.LegacyID,
	}

	switch entity.EntityType {
	case entities.EntityProcessDefinition:
		copyFields(payload, entity.Fields, map[string]string{
			"KEY_":           "processDefinitionId",
			"NAME_":          "name",
			"VERSION_":       "version",
			"RESOURCE_NAME_": "resourceName",
			"TENANT_ID_":     "tenantId",
		})

	case entities.EntityProcessInstance:
		defKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityProcessDefinition, entity, "PROC_DEF_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["processDefinitionKey"] = defKey
		copyFields(payload, entity.Fields, map[string]string{
			"BUSINESS_KEY_": "businessKey",
			"ACT_ID_":       "elementId",
			"TENANT_ID_":    "tenantId",
		})

	case entities.EntityVariable:
		if t, _ := stringField(entity.Fields, "TYPE_"); t == "bytes" {
			return nil, "binary variable values cannot be migrated", nil
		}
		instKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityProcessInstance, entity, "PROC_INST_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["processInstanceKey"] = instKey
		copyFields(payload, entity.Fields, map[string]string{
			"NAME_":   "name",
			"TYPE_":   "type",
			"TEXT_":   "value",
			"LONG_":   "longValue",
			"DOUBLE_": "doubleValue",
		})

	case entities.EntityUserTask:
		instKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityProcessInstance, entity, "PROC_INST_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["processInstanceKey"] = instKey
		copyFields(payload, entity.Fields, map[string]string{
			"NAME_":          "name",
			"TASK_DEF_KEY_":  "elementId",
			"ASSIGNEE_":      "assignee",
			"PRIORITY_":      "priority",
			"DUE_DATE_":      "dueDate",
			"FOLLOW_UP_DATE_": "followUpDate",
		})

	case entities.EntityIncident:
		instKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityProcessInstance, entity, "PROC_INST_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["processInstanceKey"] = instKey
		copyFields(payload, entity.Fields, map[string]string{
			"INCIDENT_TYPE_": "type",
			"INCIDENT_MSG_":  "message",
			"ACT_ID_":        "elementId",
		})

	case entities.EntityDecisionDefinition:
		copyFields(payload, entity.Fields, map[string]string{
			"KEY_":        "decisionDefinitionId",
			"NAME_":       "name",
			"VERSION_":    "version",
			"TENANT_ID_":  "tenantId",
		})

	case entities.EntityDecisionInstance:
		decKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityDecisionDefinition, entity, "DEC_DEF_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["decisionDefinitionKey"] = decKey
		copyFields(payload, entity.Fields, map[string]string{
			"EVAL_TIME_": "evaluationTime",
		})

	case entities.EntityHistoryProcessInstance:
		defKey, skip, err := c.dependencyKey(ctx, lookup, entities.EntityProcessDefinition, entity, "PROC_DEF_ID_")
		if skip != "" || err != nil {
			return nil, skip, err
		}
		payload["processDefinitionKey"] = defKey
		copyFields(payload, entity.Fields, map[string]string{
			"BUSINESS_KEY_": "businessKey",
			"START_TIME_":   "startTime",
			"END_TIME_":     "endTime",
			"STATE_":        "state",
		})

	default:
		return nil, "", fmt.Errorf("no conversion defined for entity type %q", entity.EntityType)
	}

	return &migrator.TargetRecord{
		EntityType: entity.EntityType,
		Payload:    payload,
	}, "", nil
}

// dependencyKey resolves a referenced entity's target key. A dependency the
// ledger has never migrated yields a skip reason so the entity can be
// retried once the dependency lands.
func (c *Converter) dependencyKey(ctx context.Context, lookup migrator.KeyLookup, depType entities.EntityType, entity *migrator.SourceEntity, column string) (string, string, error) {
	depID, ok := stringField(entity.Fields, column)
	if !ok || depID == "" {
		return "", fmt.Sprintf("source row has no %s reference", column), nil
	}

	key, err := lookup.FindTargetKey(ctx, depType, depID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound) {
			return "", fmt.Sprintf("%s %s has not been migrated", depType, depID), nil
		}
		return "", "", err
	}
	return key, "", nil
}

// copyFields maps source columns into payload fields, skipping absent or
// nil columns.
func copyFields(payload map[string]any, fields map[string]any, mapping map[string]string) {
	for column, name := range mapping {
		v, ok := fields[column]
		if !ok || v == nil {
			continue
		}
		if b, isBytes := v.([]byte); isBytes {
			v = string(b)
		}
		payload[name] = v
	}
}

func stringField(fields map[string]any, column string) (string, bool) {
	switch v := fields[column].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
