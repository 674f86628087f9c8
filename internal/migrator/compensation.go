package migrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/camunda-community-hub/c7-data-migrator/internal/errors"
	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
)

// CompensationPolicy decides what happens to a target-system object that was
// created but whose ledger write failed. The right action is
// environment-specific, so it is pluggable rather than hard-coded.
type CompensationPolicy interface {
	// Compensate acts on every orphaned target key. It returns the keys it
	// could not compensate, joined with the underlying errors.
	Compensate(ctx context.Context, target TargetClient, entityType entities.EntityType, keys []string) error

	// Name identifies the policy in logs and audit records.
	Name() string
}

// NewCompensationPolicy returns the policy for the configured name.
func NewCompensationPolicy(name string, logger *slog.Logger) (CompensationPolicy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch name {
	case "cancel":
		return &cancelPolicy{logger: logger}, nil
	case "delete":
		return &deletePolicy{logger: logger}, nil
	case "leave":
		return &leavePolicy{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown compensation policy %q", name)
	}
}

// cancelPolicy cancels orphaned runtime objects so they stop executing.
type cancelPolicy struct {
	logger *slog.Logger
}

func (p *cancelPolicy) Name() string { return "cancel" }

func (p *cancelPolicy) Compensate(ctx context.Context, target TargetClient, entityType entities.EntityType, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := target.Cancel(ctx, entityType, key); err != nil {
			p.logger.Error("failed to cancel orphaned target object",
				"entity_type", entityType, "target_key", key, "error", err)
			errs = append(errs, fmt.Errorf("cancel %s: %w", key, err))
			continue
		}
		p.logger.Info("cancelled orphaned target object",
			"entity_type", entityType, "target_key", key)
	}
	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Category(errors.CategoryCompensation).
			Context("failed_count", len(errs)).
			Build()
	}
	return nil
}

// deletePolicy removes orphaned objects entirely.
type deletePolicy struct {
	logger *slog.Logger
}

func (p *deletePolicy) Name() string { return "delete" }

func (p *deletePolicy) Compensate(ctx context.Context, target TargetClient, entityType entities.EntityType, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := target.Delete(ctx, entityType, key); err != nil {
			p.logger.Error("failed to delete orphaned target object",
				"entity_type", entityType, "target_key", key, "error", err)
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		p.logger.Info("deleted orphaned target object",
			"entity_type", entityType, "target_key", key)
	}
	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Category(errors.CategoryCompensation).
			Context("failed_count", len(errs)).
			Build()
	}
	return nil
}

// leavePolicy leaves orphans for manual cleanup, logging each one.
type leavePolicy struct {
	logger *slog.Logger
}

func (p *leavePolicy) Name() string { return "leave" }

func (p *leavePolicy) Compensate(ctx context.Context, target TargetClient, entityType entities.EntityType, keys []string) error {
	for _, key := range keys {
		p.logger.Warn("leaving orphaned target object for manual cleanup",
			"entity_type", entityType, "target_key", key)
	}
	return nil
}
