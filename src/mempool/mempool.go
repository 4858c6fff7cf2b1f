// Package mempool implements the ordered holding area for transactions that
// have not yet been included in a block.
package mempool

import (
	"fmt"
	"sync"

	"github.com/robjohncolson/apstat-chain/src/chain"
)

// ErrDuplicateTx is returned when a transaction with the same ID is already
// pending.
var ErrDuplicateTx = fmt.Errorf("transaction already in mempool")

// Mempool is an append-only, ordered set of unconfirmed transactions. Add
// appends at the tail; Drain atomically removes and returns everything
// pending, so that no transaction can be read by two concurrent drains.
type Mempool struct {
	sync.Mutex
	txs  []*chain.Transaction
	seen map[string]bool
}

// New ...
func New() *Mempool {
	return &Mempool{
		seen: map[string]bool{},
	}
}

// Add appends tx at the tail. O(1).
func (m *Mempool) Add(tx *chain.Transaction) error {
	m.Lock()
	defer m.Unlock()

	if m.seen[tx.ID] {
		return ErrDuplicateTx
	}

	m.txs = append(m.txs, tx)
	m.seen[tx.ID] = true

	return nil
}

// Drain removes and returns all pending transactions as one atomic step.
func (m *Mempool) Drain() []*chain.Transaction {
	m.Lock()
	defer m.Unlock()

	drained := m.txs
	m.txs = nil
	m.seen = map[string]bool{}

	return drained
}

// DrainFirst removes and returns the first n pending transactions. The miner
// uses it with the length of a Pending snapshot, so a transaction submitted
// between snapshot and drain stays pooled for the next block.
func (m *Mempool) DrainFirst(n int) []*chain.Transaction {
	m.Lock()
	defer m.Unlock()

	if n > len(m.txs) {
		n = len(m.txs)
	}

	drained := m.txs[:n]
	m.txs = m.txs[n:]
	for _, tx := range drained {
		delete(m.seen, tx.ID)
	}

	return drained
}

// Rebuild returns a new mempool holding the pending transactions that pass
// the keep predicate, in their original order. Used after a chain merge to
// drop transactions the merged chain already finalized.
func (m *Mempool) Rebuild(keep func(*chain.Transaction) bool) *Mempool {
	m.Lock()
	defer m.Unlock()

	res := New()
	for _, tx := range m.txs {
		if keep(tx) {
			res.txs = append(res.txs, tx)
			res.seen[tx.ID] = true
		}
	}

	return res
}

// Pending returns a snapshot of the pending transactions, in order.
func (m *Mempool) Pending() []*chain.Transaction {
	m.Lock()
	defer m.Unlock()

	res := make([]*chain.Transaction, len(m.txs))
	copy(res, m.txs)

	return res
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.Lock()
	defer m.Unlock()

	return len(m.txs)
}

// Contains reports whether a transaction with the given ID is pending.
func (m *Mempool) Contains(id string) bool {
	m.Lock()
	defer m.Unlock()

	return m.seen[id]
}
