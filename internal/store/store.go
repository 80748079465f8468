package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/shopspring/decimal"

	"aqualedger/backend/internal/domain"
)

var ErrNotFound = errors.New("document not found")

// Port is the persistence capability the core depends on. Documents are opaque JSON.
type Port interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, doc []byte) error
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by drivers that can enumerate stored keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

const (
	KeyCustomers          = "customers_data"
	KeyProducts           = "products_data"
	KeyBottleTransactions = "bottles_transactions"
	KeyOrders             = "orders_data"
	KeyPayments           = "payments_data"
	KeyExpenses           = "expenses_data"
	KeyExpenseCategories  = "expenses_categories"
	KeyCashBalance        = "cash_balance"
	KeyCashCurrentBalance = "cash_current_balance"
	KeyCashDailyRecords   = "cash_daily_records"
	KeyCashAdjustments    = "cash_adjustments"
	KeyWaterQuality       = "water_quality_entries"
	KeyWaterQualityRanges = "water_quality_ranges"
	KeyAppSettings        = "app_settings"
	KeyLanguage           = "i18n_language"
	KeyUsers              = "users"
)

// SharedKeys lists every key holding business data. Users are excluded so
// password hashes never leave the store in a snapshot.
var SharedKeys = []string{
	KeyCustomers, KeyProducts, KeyBottleTransactions, KeyOrders, KeyPayments,
	KeyExpenses, KeyExpenseCategories, KeyCashBalance, KeyCashCurrentBalance,
	KeyCashDailyRecords, KeyCashAdjustments, KeyWaterQuality, KeyWaterQualityRanges,
	KeyAppSettings, KeyLanguage,
}

// Collection is a list of T stored under one key.
type Collection[T any] struct {
	port Port
	key  string
}

func NewCollection[T any](port Port, key string) Collection[T] {
	return Collection[T]{port: port, key: key}
}

func (c Collection[T]) Key() string { return c.key }

// FetchAll returns the stored items; a missing key yields an empty list.
func (c Collection[T]) FetchAll(ctx context.Context) ([]T, error) {
	items, _, err := c.Fetch(ctx)
	return items, err
}

// Fetch is FetchAll that also reports whether the key has ever been written.
func (c Collection[T]) Fetch(ctx context.Context) ([]T, bool, error) {
	items := []T{}
	raw, err := c.port.Get(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return items, false, nil
	}
	if err != nil {
		return nil, false, domain.Persistence("load "+c.key, err)
	}
	if isEmptyDocument(raw) {
		return items, true, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, domain.Persistence("decode "+c.key, err)
	}
	return items, true, nil
}

func (c Collection[T]) Put(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return domain.Persistence("encode "+c.key, err)
	}
	if err := c.port.Put(ctx, c.key, raw); err != nil {
		return domain.Persistence("save "+c.key, err)
	}
	return nil
}

func (c Collection[T]) Remove(ctx context.Context) error {
	if err := c.port.Remove(ctx, c.key); err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Persistence("remove "+c.key, err)
	}
	return nil
}

// Document is a singleton T stored under one key.
type Document[T any] struct {
	port Port
	key  string
}

func NewDocument[T any](port Port, key string) Document[T] {
	return Document[T]{port: port, key: key}
}

func (d Document[T]) Key() string { return d.key }

// Fetch returns the document and whether it exists.
func (d Document[T]) Fetch(ctx context.Context) (T, bool, error) {
	var value T
	raw, err := d.port.Get(ctx, d.key)
	if errors.Is(err, ErrNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, domain.Persistence("load "+d.key, err)
	}
	if isEmptyDocument(raw) {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, domain.Persistence("decode "+d.key, err)
	}
	return value, true, nil
}

func (d Document[T]) Put(ctx context.Context, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.Persistence("encode "+d.key, err)
	}
	if err := d.port.Put(ctx, d.key, raw); err != nil {
		return domain.Persistence("save "+d.key, err)
	}
	return nil
}

func (d Document[T]) Remove(ctx context.Context) error {
	if err := d.port.Remove(ctx, d.key); err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Persistence("remove "+d.key, err)
	}
	return nil
}

func isEmptyDocument(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Collections bundles one typed handle per logical key.
type Collections struct {
	Port               Port
	Customers          Collection[domain.Customer]
	Products           Collection[domain.Product]
	BottleTransactions Collection[domain.BottleTransaction]
	Orders             Collection[domain.Order]
	Payments           Collection[domain.Payment]
	Expenses           Collection[domain.Expense]
	ExpenseCategories  Collection[domain.ExpenseCategory]
	CashBalance        Document[domain.CashBalance]
	CashCurrentBalance Document[decimal.Decimal]
	CashDailyRecords   Collection[domain.DailyCashRecord]
	CashAdjustments    Collection[domain.CashAdjustment]
	WaterQuality       Collection[domain.WaterQualityEntry]
	WaterQualityRanges Document[domain.WaterQualityRanges]
	Settings           Document[domain.AppSettings]
	Language           Document[string]
	Users              Collection[domain.User]
}

func NewCollections(port Port) *Collections {
	return &Collections{
		Port:               port,
		Customers:          NewCollection[domain.Customer](port, KeyCustomers),
		Products:           NewCollection[domain.Product](port, KeyProducts),
		BottleTransactions: NewCollection[domain.BottleTransaction](port, KeyBottleTransactions),
		Orders:             NewCollection[domain.Order](port, KeyOrders),
		Payments:           NewCollection[domain.Payment](port, KeyPayments),
		Expenses:           NewCollection[domain.Expense](port, KeyExpenses),
		ExpenseCategories:  NewCollection[domain.ExpenseCategory](port, KeyExpenseCategories),
		CashBalance:        NewDocument[domain.CashBalance](port, KeyCashBalance),
		CashCurrentBalance: NewDocument[decimal.Decimal](port, KeyCashCurrentBalance),
		CashDailyRecords:   NewCollection[domain.DailyCashRecord](port, KeyCashDailyRecords),
		CashAdjustments:    NewCollection[domain.CashAdjustment](port, KeyCashAdjustments),
		WaterQuality:       NewCollection[domain.WaterQualityEntry](port, KeyWaterQuality),
		WaterQualityRanges: NewDocument[domain.WaterQualityRanges](port, KeyWaterQualityRanges),
		Settings:           NewDocument[domain.AppSettings](port, KeyAppSettings),
		Language:           NewDocument[string](port, KeyLanguage),
		Users:              NewCollection[domain.User](port, KeyUsers),
	}
}

// Snapshot reads every shared key that currently holds a document.
func Snapshot(ctx context.Context, port Port) (map[string]json.RawMessage, error) {
	keys, err := snapshotKeys(ctx, port)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		raw, err := port.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, domain.Persistence("load "+key, err)
		}
		out[key] = json.RawMessage(raw)
	}
	return out, nil
}

// snapshotKeys narrows SharedKeys to the stored ones when the driver can list them.
func snapshotKeys(ctx context.Context, port Port) ([]string, error) {
	lister, ok := port.(Lister)
	if !ok {
		return SharedKeys, nil
	}
	stored, err := lister.Keys(ctx)
	if err != nil {
		return nil, domain.Persistence("list keys", err)
	}
	keys := make([]string, 0, len(stored))
	for _, key := range stored {
		if slices.Contains(SharedKeys, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
