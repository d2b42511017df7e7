package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/movecall/bridge/nodeapi"
)

func outcome(sender string, seq uint64, status nodeapi.Status) *nodeapi.Outcome {
	return &nodeapi.Outcome{
		Hash:           fmt.Sprintf("0x%064x", seq+1),
		Sender:         sender,
		SequenceNumber: seq,
		Status:         status,
		Accepted:       status != nodeapi.StatusRejected,
		Success:        status == nodeapi.StatusSuccess,
		VMStatus:       "Executed successfully",
		Expiration:     1_700_000_060,
		SubmittedAt:    time.Unix(1_700_000_000, 123456789),
		CompletedAt:    time.Unix(1_700_000_001, 0),
	}
}

func stores(t *testing.T) map[string]KVStore {
	t.Helper()

	persistent, err := NewBadgerStore(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	inMemory, err := NewInMemoryBadgerStore()
	require.NoError(t, err)

	return map[string]KVStore{
		"memory":          NewMemoryStore(),
		"badger":          persistent,
		"badger-inmemory": inMemory,
	}
}

func TestRecordAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			j, err := New(store)
			require.NoError(t, err)
			defer j.Close()

			want := outcome("0xabc", 3, nodeapi.StatusSuccess)
			require.NoError(t, j.RecordOutcome(context.Background(), want))

			got, err := j.Get(want.Hash)
			require.NoError(t, err)
			assert.Equal(t, want.Hash, got.Hash)
			assert.Equal(t, want.Status, got.Status)
			assert.Equal(t, want.SequenceNumber, got.SequenceNumber)
			assert.True(t, got.Success)
			assert.True(t, want.SubmittedAt.Equal(got.SubmittedAt))

			_, err = j.Get("0xdead")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestListBySenderIsOrdered(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			j, err := New(store)
			require.NoError(t, err)
			defer j.Close()
			ctx := context.Background()

			for _, seq := range []uint64{10, 2, 1} {
				require.NoError(t, j.RecordOutcome(ctx, outcome("0xAbC", seq, nodeapi.StatusSuccess)))
			}
			require.NoError(t, j.RecordOutcome(ctx, outcome("0xother", 5, nodeapi.StatusRejected)))

			list, err := j.ListBySender("0xabc")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, uint64(1), list[0].SequenceNumber)
			assert.Equal(t, uint64(2), list[1].SequenceNumber)
			assert.Equal(t, uint64(10), list[2].SequenceNumber)

			none, err := j.ListBySender("0xnobody")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

// countingStore counts writes to the sender index
type countingStore struct {
	*MemoryStore
	indexPuts int
}

func (s *countingStore) Put(key string, value []byte) error {
	if strings.HasPrefix(key, senderPrefix) {
		s.indexPuts++
	}
	return s.MemoryStore.Put(key, value)
}

func TestRecordReplacesStatus(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	j, err := New(store)
	require.NoError(t, err)

	o := outcome("0x1", 0, nodeapi.StatusSubmitted)
	require.NoError(t, j.RecordOutcome(context.Background(), o))
	o.Status = nodeapi.StatusExpired
	require.NoError(t, j.RecordOutcome(context.Background(), o))

	got, err := j.Get(o.Hash)
	require.NoError(t, err)
	assert.Equal(t, nodeapi.StatusExpired, got.Status)

	list, err := j.ListBySender("0x1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, store.indexPuts)
}

func TestBadgerJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	j, err := Open("badger", path)
	require.NoError(t, err)
	o := outcome("0x1", 4, nodeapi.StatusExecutionFailed)
	require.NoError(t, j.RecordOutcome(context.Background(), o))
	require.NoError(t, j.Close())

	j, err = Open("badger", path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(o.Hash)
	require.NoError(t, err)
	assert.Equal(t, nodeapi.StatusExecutionFailed, got.Status)
}

func TestOpenValidation(t *testing.T) {
	_, err := Open("sqlite", "")
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)

	j, err := Open("memory", "")
	require.NoError(t, err)
	assert.Error(t, j.RecordOutcome(context.Background(), &nodeapi.Outcome{}))
}
