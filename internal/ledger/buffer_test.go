package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/camunda-community-hub/c7-data-migrator/internal/ledger/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// recordingStore captures bulk inserts and can be told to fail.
type recordingStore struct {
	Store

	mu      sync.Mutex
	batches [][]NewEntry
	failAll bool
}

func (s *recordingStore) BulkInsert(ctx context.Context, newEntries []NewEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return fmt.Errorf("bulk insert refused")
	}
	s.batches = append(s.batches, newEntries)
	return nil
}

func (s *recordingStore) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, 0, len(s.batches))
	for _, b := range s.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func instanceEntry(id string) NewEntry {
	key := "key-" + id
	return NewEntry{LegacyID: id, EntityType: entities.EntityProcessInstance, TargetKey: &key}
}

func TestBufferFlushesAtThreshold(t *testing.T) {
	store := &recordingStore{}
	buffer := NewBuffer(store, 2, nil)
	register := NewCompensationRegister()
	ctx := t.Context()

	// Add reports the flushed batch size only when it triggers a flush.
	wantFlushed := []int{0, 2, 0, 2, 0}
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		flushed, err := buffer.Add(ctx, register, instanceEntry(id))
		require.NoError(t, err)
		assert.Equal(t, wantFlushed[i], flushed)
	}
	flushed, err := buffer.Flush(ctx, register)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	// Two full batches at the threshold plus the final partial flush
	assert.Equal(t, []int{2, 2, 1}, store.batchSizes())
	assert.Zero(t, buffer.Len())
}

func TestBufferFlushEmptyIsNoop(t *testing.T) {
	store := &recordingStore{}
	buffer := NewBuffer(store, 10, nil)

	flushed, err := buffer.Flush(t.Context(), NewCompensationRegister())
	require.NoError(t, err)
	assert.Zero(t, flushed)
	assert.Empty(t, store.batchSizes())
}

func TestBufferFailedFlushDepositsCompensableKeys(t *testing.T) {
	store := &recordingStore{failAll: true}
	buffer := NewBuffer(store, 10, nil)
	register := NewCompensationRegister()
	ctx := t.Context()

	_, err := buffer.Add(ctx, register, instanceEntry("a"))
	require.NoError(t, err)
	_, err = buffer.Add(ctx, register, instanceEntry("b"))
	require.NoError(t, err)

	// Variables need no target-side rollback, so their keys stay out of
	// the register.
	varKey := "var-key"
	_, err = buffer.Add(ctx, register, NewEntry{
		LegacyID:   "v-1",
		EntityType: entities.EntityVariable,
		TargetKey:  &varKey,
	})
	require.NoError(t, err)

	flushed, err := buffer.Flush(ctx, register)
	require.Error(t, err)
	assert.Zero(t, flushed, "a failed batch must not count as persisted")

	assert.ElementsMatch(t, []string{"key-a", "key-b"}, register.FailedKeys())
	assert.Zero(t, buffer.Len(), "failed batch must not be re-flushed from memory")
}

func TestBufferSuccessfulFlushClearsRegister(t *testing.T) {
	store := &recordingStore{failAll: true}
	buffer := NewBuffer(store, 10, nil)
	register := NewCompensationRegister()
	ctx := t.Context()

	_, err := buffer.Add(ctx, register, instanceEntry("a"))
	require.NoError(t, err)
	_, err = buffer.Flush(ctx, register)
	require.Error(t, err)
	require.NotEmpty(t, register.FailedKeys())

	store.mu.Lock()
	store.failAll = false
	store.mu.Unlock()

	_, err = buffer.Add(ctx, register, instanceEntry("b"))
	require.NoError(t, err)
	flushed, err := buffer.Flush(ctx, register)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	assert.Empty(t, register.FailedKeys())
}

func TestBufferConcurrentAdds(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &recordingStore{}
	buffer := NewBuffer(store, 7, nil)
	register := NewCompensationRegister()
	ctx := t.Context()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			for i := range perWorker {
				entry := instanceEntry(fmt.Sprintf("w%d-%d", w, i))
				_, err := buffer.Add(ctx, register, entry)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	_, err := buffer.Flush(ctx, register)
	require.NoError(t, err)

	total := 0
	for _, size := range store.batchSizes() {
		total += size
	}
	assert.Equal(t, workers*perWorker, total)
	assert.Zero(t, buffer.Len())
}

func TestCompensationRegister(t *testing.T) {
	register := NewCompensationRegister()

	register.Record([]string{"k1", "k2"})
	register.Record(nil)
	register.Record([]string{"k3"})

	keys := register.FailedKeys()
	assert.Equal(t, []string{"k1", "k2", "k3"}, keys)

	// The returned slice is a copy
	keys[0] = "mutated"
	assert.Equal(t, []string{"k1", "k2", "k3"}, register.FailedKeys())

	register.Clear()
	assert.Empty(t, register.FailedKeys())
}
