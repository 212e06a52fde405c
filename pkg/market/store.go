package market

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for orders, the payment token
// registry, the commission config, and the order ID counter.
// Thread-safe: all writes go through the Engine's mutex.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:          32 << 20,                  // 32MB memtable
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveOrder persists an order to Pebble
func (s *Store) SaveOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// LoadOrder loads an order from Pebble
// Returns nil if the order doesn't exist
func (s *Store) LoadOrder(id uint64) (*Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	return &o, nil
}

// LoadAllOrders loads every persisted order, ascending by ID
func (s *Store) LoadAllOrders() ([]*Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order iterator: %w", err)
	}
	defer iter.Close()

	var orders []*Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // Skip invalid entries
		}
		orders = append(orders, &o)
	}

	return orders, nil
}

// SavePaymentToken persists a payment token registry entry
func (s *Store) SavePaymentToken(pt PaymentToken) error {
	data, err := json.Marshal(pt)
	if err != nil {
		return fmt.Errorf("failed to marshal payment token: %w", err)
	}

	if err := s.db.Set(paymentTokenKey(pt.Address), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save payment token: %w", err)
	}

	return nil
}

// DeletePaymentToken removes a payment token registry entry
func (s *Store) DeletePaymentToken(addr common.Address) error {
	if err := s.db.Delete(paymentTokenKey(addr), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete payment token: %w", err)
	}
	return nil
}

// LoadPaymentTokens loads the full payment token registry
func (s *Store) LoadPaymentTokens() (map[common.Address]int64, error) {
	prefix := []byte(prefixPaymentToken)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token iterator: %w", err)
	}
	defer iter.Close()

	tokens := make(map[common.Address]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		var pt PaymentToken
		if err := json.Unmarshal(iter.Value(), &pt); err != nil {
			continue // Skip invalid entries
		}
		tokens[pt.Address] = pt.Rate
	}

	return tokens, nil
}

// SaveCommission persists the commission config
func (s *Store) SaveCommission(cfg CommissionConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal commission config: %w", err)
	}

	if err := s.db.Set([]byte(keyCommission), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save commission config: %w", err)
	}

	return nil
}

// LoadCommission loads the commission config
// Returns nil if never saved
func (s *Store) LoadCommission() (*CommissionConfig, error) {
	data, closer, err := s.db.Get([]byte(keyCommission))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commission config: %w", err)
	}
	defer closer.Close()

	var cfg CommissionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal commission config: %w", err)
	}

	return &cfg, nil
}

// SaveNextOrderID persists the order ID counter
func (s *Store) SaveNextOrderID(id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	if err := s.db.Set([]byte(keyNextOrderID), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order counter: %w", err)
	}
	return nil
}

// LoadNextOrderID loads the order ID counter, 0 if never saved
func (s *Store) LoadNextOrderID() (uint64, error) {
	data, closer, err := s.db.Get([]byte(keyNextOrderID))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get order counter: %w", err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt order counter: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Batch provides atomic batch writes so an order and the ID counter
// commit together
type Batch struct {
	batch *pebble.Batch
}

// NewBatch creates a new batch writer
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SaveOrder adds an order save to the batch
func (b *Batch) SaveOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.batch.Set(orderKey(o.ID), data, nil)
}

// SaveNextOrderID adds a counter save to the batch
func (b *Batch) SaveNextOrderID(id uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return b.batch.Set([]byte(keyNextOrderID), buf[:], nil)
}

// Commit writes the batch to Pebble atomically
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close closes the batch without committing
func (b *Batch) Close() error {
	return b.batch.Close()
}
