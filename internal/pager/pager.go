// Package pager provides a generic fixed-size page iterator over a counted
// result set. It is a pure iteration aid: fetch and consume errors propagate
// immediately, with no retries or backoff.
package pager

import (
	"context"
	"fmt"
)

// OffsetMode selects how the cursor advances between pages.
type OffsetMode int

const (
	// Advance moves the offset forward by one page size per iteration.
	// Correct only when the consumer does not remove rows from the
	// underlying result set.
	Advance OffsetMode = iota

	// RestartFromZero re-fetches from offset 0 on every iteration. Required
	// when the consumer's side effect (e.g. marking a row migrated) removes
	// that row from the next page's result set; advancing the offset in that
	// situation silently skips rows that shifted position.
	RestartFromZero
)

// CountFunc returns the total number of items to iterate. It is called once,
// before the first page.
type CountFunc func(ctx context.Context) (int64, error)

// FetchFunc returns one page of items starting at offset.
type FetchFunc[T any] func(ctx context.Context, offset, pageSize int) ([]T, error)

// ConsumeFunc handles a single item. An error stops the iteration.
type ConsumeFunc[T any] func(ctx context.Context, item T) error

// Paginate walks the result set page by page, passing every item to consume
// in order. The choice of OffsetMode is the call site's responsibility; the
// driver cannot detect a mutating consumer.
func Paginate[T any](ctx context.Context, pageSize int, mode OffsetMode, count CountFunc, fetch FetchFunc[T], consume ConsumeFunc[T]) error {
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	total, err := count(ctx)
	if err != nil {
		return fmt.Errorf("counting items: %w", err)
	}

	offset := 0
	for int64(offset) < total {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetchOffset := offset
		if mode == RestartFromZero {
			fetchOffset = 0
		}

		page, err := fetch(ctx, fetchOffset, pageSize)
		if err != nil {
			return fmt.Errorf("fetching page at offset %d: %w", fetchOffset, err)
		}

		// A shrinking result set can run dry before the precomputed total
		// is reached; an empty page ends the iteration either way.
		if len(page) == 0 {
			return nil
		}

		for i := range page {
			if err := consume(ctx, page[i]); err != nil {
				return err
			}
		}

		offset += pageSize
	}

	return nil
}
