// ABOUTME: Unit tests for Charm-based profile storage.
// ABOUTME: Uses an in-memory KV in place of Charm Cloud.
package charm

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/health/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	readOnly bool
	syncs    int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, badger.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = value
	return nil
}

func (m *memKV) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memKV) Keys() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (m *memKV) IsReadOnly() bool { return m.readOnly }
func (m *memKV) Sync() error      { m.syncs++; return nil }
func (m *memKV) Reset() error     { m.data = make(map[string][]byte); return nil }
func (m *memKV) Close() error     { return nil }

func TestProfileKeyFormat(t *testing.T) {
	assert.Equal(t, "profile:u1", profileKey("u1"))
	assert.Equal(t, "profile:", ProfilePrefix)
}

func TestEncodeDecodeProfile(t *testing.T) {
	lockDate := time.Date(2025, 7, 31, 15, 0, 0, 0, time.UTC)
	data, err := encodeProfile("u1", models.DataLock{Enabled: true, LockDate: lockDate}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data_lock_date":"2025-07-31"`)

	lock, err := decodeProfile(data)
	require.NoError(t, err)
	assert.True(t, lock.Enabled)
	assert.True(t, lock.LockDate.Equal(models.Day(lockDate)))
}

func TestDecodeProfileBadDate(t *testing.T) {
	_, err := decodeProfile([]byte(`{"data_lock_enabled":true,"data_lock_date":"31/07/2025"}`))
	assert.Error(t, err)
}

func TestGetDataLockMissingProfile(t *testing.T) {
	c := newClient(newMemKV())

	lock, err := c.GetDataLock(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, lock.Enabled)
}

func TestSetAndGetDataLock(t *testing.T) {
	store := newMemKV()
	c := newClient(store)
	ctx := context.Background()
	lockDate := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetDataLock(ctx, "u1", models.DataLock{Enabled: true, LockDate: lockDate}))
	assert.Equal(t, 1, store.syncs, "writes sync when auto sync is on")

	lock, err := c.GetDataLock(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, lock.Covers(lockDate))
	assert.False(t, lock.Covers(lockDate.AddDate(0, 0, 1)))

	locks, err := c.ListDataLocks(ctx)
	require.NoError(t, err)
	assert.Len(t, locks, 1)
	assert.True(t, locks["u1"].Enabled)

	require.NoError(t, c.ClearProfile(ctx, "u1"))
	lock, err = c.GetDataLock(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, lock.Enabled)
}

func TestSetDataLockRequiresDate(t *testing.T) {
	c := newClient(newMemKV())
	assert.Error(t, c.SetDataLock(context.Background(), "u1", models.DataLock{Enabled: true}))
}

func TestSetDataLockReadOnly(t *testing.T) {
	store := newMemKV()
	store.readOnly = true
	c := newClient(store)

	err := c.SetDataLock(context.Background(), "u1", models.DataLock{})
	assert.True(t, errors.Is(err, ErrReadOnly))
	assert.NoError(t, c.Sync(), "sync is a no-op while read-only")
	assert.Equal(t, 0, store.syncs)
}

func TestAutoSyncDisabled(t *testing.T) {
	store := newMemKV()
	c := newClient(store)
	c.SetAutoSync(false)

	require.NoError(t, c.SetDataLock(context.Background(), "u1", models.DataLock{}))
	assert.Equal(t, 0, store.syncs)
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	c := newClient(failingKV{memKV: newMemKV()})
	_, err := c.GetDataLock(context.Background(), "u1")
	assert.Error(t, err)
}

type failingKV struct {
	*memKV
}

func (failingKV) Get([]byte) ([]byte, error) { return nil, errors.New("disk on fire") }
