package errors

import (
	"fmt"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic', got '%s'", ee.Category)
	}
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	ee := Newf("bulk insert failed: %d rows", 42).
		Component("ledger").
		Category(CategoryBatch).
		Context("batch_size", 42).
		Build()

	if ee.GetComponent() != "ledger" {
		t.Errorf("Expected component 'ledger', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryBatch {
		t.Errorf("Expected category 'batch-insert', got '%s'", ee.Category)
	}
	if ee.GetContext()["batch_size"] != 42 {
		t.Errorf("Expected batch_size context to round-trip")
	}
}

func TestEntityContext(t *testing.T) {
	t.Parallel()

	ee := Newf("skipped").Category(CategoryValidation).EntityContext("inst-42", "process-instance").Build()

	ctx := ee.GetContext()
	if ctx["legacy_id"] != "inst-42" || ctx["entity_type"] != "process-instance" {
		t.Errorf("Expected entity context keys, got %v", ctx)
	}
}

func TestCategoryDetection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want ErrorCategory
	}{
		{"ledger entry not found", CategoryNotFound},
		{"validation failed for variable", CategoryValidation},
		{"failed to commit secondary transaction", CategoryTransaction},
		{"sql constraint violated", CategoryDatabase},
		{"connection refused", CategoryNetwork},
		{"something else entirely", CategoryGeneric},
	}

	for _, tc := range cases {
		ee := Newf("%s", tc.msg).Build()
		if ee.Category != tc.want {
			t.Errorf("message %q: expected category %s, got %s", tc.msg, tc.want, ee.Category)
		}
	}
}

func TestIsCategoryMatching(t *testing.T) {
	t.Parallel()

	base := Newf("boom").Category(CategoryTargetClient).Build()
	wrapped := fmt.Errorf("outer: %w", base)

	if !IsCategory(wrapped, CategoryTargetClient) {
		t.Error("Expected wrapped error to match CategoryTargetClient")
	}
	if IsCategory(wrapped, CategoryDatabase) {
		t.Error("Did not expect wrapped error to match CategoryDatabase")
	}
}
