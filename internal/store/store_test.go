package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqualedger/backend/internal/domain"
	"aqualedger/backend/internal/store"
	"aqualedger/backend/internal/store/memory"
)

type failingPort struct{ err error }

func (f failingPort) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingPort) Put(context.Context, string, []byte) error { return f.err }
func (f failingPort) Remove(context.Context, string) error { return f.err }

func TestCollectionMissingKeyIsEmpty(t *testing.T) {
	cols := store.NewCollections(memory.New())

	orders, err := cols.Orders.FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	cols := store.NewCollections(memory.New())

	err := cols.Products.Put(ctx, []domain.Product{{ID: "p1", Name: "19L", Price: domain.Money(150), IsActive: true}})
	require.NoError(t, err)

	products, err := cols.Products.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, products[0].Returnable())
}

func TestDocumentFetchReportsPresence(t *testing.T) {
	ctx := context.Background()
	cols := store.NewCollections(memory.New())

	_, ok, err := cols.CashBalance.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cols.CashBalance.Put(ctx, domain.CashBalance{Amount: domain.Money(42.5)}))
	got, ok, err := cols.CashBalance.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42.5", got.Amount.String())
}

func TestDecodeFailureIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	port := memory.New()
	require.NoError(t, port.Put(ctx, store.KeyCustomers, []byte("{not json")))

	_, err := store.NewCollections(port).Customers.FetchAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestDriverFailureIsPersistenceError(t *testing.T) {
	boom := errors.New("connection reset")
	cols := store.NewCollections(failingPort{err: boom})

	err := cols.Orders.Put(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotSkipsMissingKeys(t *testing.T) {
	ctx := context.Background()
	port := memory.New()
	require.NoError(t, port.Put(ctx, store.KeyLanguage, []byte(`"ur"`)))
	require.NoError(t, port.Put(ctx, "session:abc", []byte(`{}`)))

	snap, err := store.Snapshot(ctx, port)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.JSONEq(t, `"ur"`, string(snap[store.KeyLanguage]))
}

// portOnly hides the driver's Keys method.
type portOnly struct{ store.Port }

func TestSnapshotLeavesOutUsers(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, mem.Put(ctx, store.KeyUsers, []byte(`[{"id":"usr-1","passwordHash":"$2a$10$x"}]`)))
	require.NoError(t, mem.Put(ctx, store.KeyOrders, []byte(`[]`)))

	for _, port := range []store.Port{mem, portOnly{mem}} {
		snap, err := store.Snapshot(ctx, port)
		require.NoError(t, err)
		assert.NotContains(t, snap, store.KeyUsers)
		assert.Contains(t, snap, store.KeyOrders)
		assert.Len(t, snap, 1)
	}
}

type listFailPort struct {
	*memory.Store
	err error
}

func (p listFailPort) Keys(context.Context) ([]string, error) { return nil, p.err }

func TestSnapshotListErrorIsPersistenceError(t *testing.T) {
	boom := errors.New("scan failed")
	_, err := store.Snapshot(context.Background(), listFailPort{Store: memory.New(), err: boom})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, boom)
}
