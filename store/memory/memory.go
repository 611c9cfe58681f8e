// Package memory provides an in-memory loyalty.Store for testing/dev.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu           sync.RWMutex
	customers    map[loyalty.CustomerID]loyalty.Customer
	transactions map[loyalty.CustomerID][]loyalty.Transaction
	totals       map[loyalty.CustomerID][]loyalty.RewardTotal
}

func New() *Store {
	return &Store{
		customers:    make(map[loyalty.CustomerID]loyalty.Customer),
		transactions: make(map[loyalty.CustomerID][]loyalty.Transaction),
		totals:       make(map[loyalty.CustomerID][]loyalty.RewardTotal),
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Store) GetCustomer(_ context.Context, id loyalty.CustomerID) (*loyalty.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Store) GetCustomerByEmail(_ context.Context, email string) (*loyalty.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) SaveCustomer(_ context.Context, c loyalty.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.customers {
		if id != c.ID && strings.EqualFold(existing.Email, c.Email) {
			return loyalty.ErrConstraintViolation
		}
	}
	m.customers[c.ID] = c
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Store) ListTransactions(_ context.Context, customerID loyalty.CustomerID) ([]loyalty.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]loyalty.Transaction, len(m.transactions[customerID]))
	copy(result, m.transactions[customerID])
	return result, nil
}

func (m *Store) GetTransaction(_ context.Context, customerID loyalty.CustomerID, id loyalty.TransactionID) (*loyalty.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tx := range m.transactions[customerID] {
		if tx.ID == id {
			tx := tx
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Store) ListTransactionsInRange(_ context.Context, customerID loyalty.CustomerID, from, to time.Time) ([]loyalty.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []loyalty.Transaction
	for _, tx := range m.transactions[customerID] {
		if !tx.Date.Before(from) && !tx.Date.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Store) SaveTransaction(_ context.Context, tx loyalty.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := m.transactions[tx.CustomerID]
	for i, existing := range txs {
		if existing.ID == tx.ID {
			txs[i] = tx
			m.sortLocked(tx.CustomerID)
			return nil
		}
	}
	m.transactions[tx.CustomerID] = append(txs, tx)
	m.sortLocked(tx.CustomerID)
	return nil
}

func (m *Store) DeleteTransaction(_ context.Context, customerID loyalty.CustomerID, id loyalty.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := m.transactions[customerID]
	for i, tx := range txs {
		if tx.ID == id {
			m.transactions[customerID] = append(txs[:i], txs[i+1:]...)
			return nil
		}
	}
	return nil
}

// sortLocked keeps a customer's transactions in date-then-insertion order,
// matching the sqlite store's ORDER BY. Caller holds m.mu.
func (m *Store) sortLocked(customerID loyalty.CustomerID) {
	txs := m.transactions[customerID]
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
}

// =============================================================================
// REWARD TOTALS
// =============================================================================

func (m *Store) FindRewardTotals(_ context.Context, customerID loyalty.CustomerID, month, year int) ([]loyalty.RewardTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []loyalty.RewardTotal
	for _, rt := range m.totals[customerID] {
		if rt.Month == month && rt.Year == year {
			result = append(result, rt)
		}
	}
	return result, nil
}

func (m *Store) ListRewardTotals(_ context.Context, customerID loyalty.CustomerID) ([]loyalty.RewardTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]loyalty.RewardTotal, len(m.totals[customerID]))
	copy(result, m.totals[customerID])
	return result, nil
}

func (m *Store) SaveRewardTotal(_ context.Context, rt loyalty.RewardTotal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := m.totals[rt.CustomerID]
	for i, existing := range totals {
		if existing.ID == rt.ID {
			totals[i] = rt
			return nil
		}
	}
	m.totals[rt.CustomerID] = append(totals, rt)
	return nil
}
