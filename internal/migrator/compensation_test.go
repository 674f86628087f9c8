package migrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refusingTarget fails compensation for one specific key.
type refusingTarget struct {
	fakeTarget
	refuse string
}

func (f *refusingTarget) Cancel(ctx context.Context, entityType entities.EntityType, targetKey string) error {
	if targetKey == f.refuse {
		return fmt.Errorf("cannot cancel %s", targetKey)
	}
	return f.fakeTarget.Cancel(ctx, entityType, targetKey)
}

func TestCancelPolicy(t *testing.T) {
	policy, err := NewCompensationPolicy("cancel", nil)
	require.NoError(t, err)
	assert.Equal(t, "cancel", policy.Name())

	target := &fakeTarget{}
	keys := []string{"k1", "k2", "k3"}
	require.NoError(t, policy.Compensate(t.Context(), target, entities.EntityProcessInstance, keys))
	assert.Equal(t, keys, target.cancelled)
	assert.Empty(t, target.deleted)
}

func TestCancelPolicyContinuesPastFailures(t *testing.T) {
	policy, err := NewCompensationPolicy("cancel", nil)
	require.NoError(t, err)

	target := &refusingTarget{refuse: "k2"}
	err = policy.Compensate(t.Context(), target, entities.EntityProcessInstance, []string{"k1", "k2", "k3"})
	require.Error(t, err)

	// The failing key did not stop the remaining compensations
	assert.Equal(t, []string{"k1", "k3"}, target.cancelled)
}

func TestDeletePolicy(t *testing.T) {
	policy, err := NewCompensationPolicy("delete", nil)
	require.NoError(t, err)

	target := &fakeTarget{}
	require.NoError(t, policy.Compensate(t.Context(), target, entities.EntityProcessInstance, []string{"k1"}))
	assert.Equal(t, []string{"k1"}, target.deleted)
	assert.Empty(t, target.cancelled)
}

func TestLeavePolicy(t *testing.T) {
	policy, err := NewCompensationPolicy("leave", nil)
	require.NoError(t, err)

	target := &fakeTarget{}
	require.NoError(t, policy.Compensate(t.Context(), target, entities.EntityProcessInstance, []string{"k1"}))
	assert.Empty(t, target.cancelled)
	assert.Empty(t, target.deleted)
}

func TestUnknownPolicy(t *testing.T) {
	_, err := NewCompensationPolicy("explode", nil)
	require.Error(t, err)
}
