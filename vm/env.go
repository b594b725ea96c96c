package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// CodeLocation identifies one program point for iteration counting and the
// path cache.
type CodeLocation struct {
	Addr types.Address
	PC   uint64
}

// Env holds every piece of state shared across all frames of a transaction:
// the working set of contracts, chain id, the unified storage expression,
// original-value bookkeeping for SSTORE refund calculus, and discovered
// keccak preimages.
type Env struct {
	Contracts map[types.Address]*Contract
	ChainID   uint64

	Storage expr.Store

	// OrigStorage snapshots each slot's value as of the start of the
	// transaction, the first time it is touched, for the SSTORE refund
	// calculus's "original" operand.
	OrigStorage map[types.Address]map[[32]byte][32]byte

	// Sha3Preimages records (hash, preimage) pairs discovered by a literal
	// KECCAK256 over a literal buffer.
	Sha3Preimages map[[32]byte][]byte
}

// NewEnv returns an Env with empty storage and bookkeeping.
func NewEnv(chainID uint64) *Env {
	return &Env{
		Contracts:     map[types.Address]*Contract{},
		ChainID:       chainID,
		Storage:       expr.NewConcreteStore(),
		OrigStorage:   map[types.Address]map[[32]byte][32]byte{},
		Sha3Preimages: map[[32]byte][]byte{},
	}
}

// RecordOrig captures the original value of (addr,slot) the first time it
// is observed in this transaction; subsequent calls are no-ops.
func (e *Env) RecordOrig(addr types.Address, slot, current [32]byte) {
	m, ok := e.OrigStorage[addr]
	if !ok {
		m = map[[32]byte][32]byte{}
		e.OrigStorage[addr] = m
	}
	if _, seen := m[slot]; !seen {
		m[slot] = current
	}
}

// Original returns the recorded original value of (addr,slot), or the
// current value if none was yet recorded (meaning this is the first touch).
func (e *Env) Original(addr types.Address, slot, current [32]byte) [32]byte {
	if m, ok := e.OrigStorage[addr]; ok {
		if v, ok2 := m[slot]; ok2 {
			return v
		}
	}
	return current
}

// Block is the subset of block header fields the interpreter needs.
type Block struct {
	Coinbase     types.Address
	Timestamp    uint64
	Number       uint64
	PrevRandao   [32]byte
	GasLimit     uint64
	BaseFee      *uint256.Int
	MaxCodeSize  int
}

// TxState is the per-transaction parameters and the snapshot needed to
// fully unwind a failed (non-revert) transaction.
type TxState struct {
	GasPrice     *uint256.Int
	TxGasLimit   uint64
	PriorityFee  *uint256.Int
	Origin       types.Address
	To           types.Address
	Value        *uint256.Int
	IsCreate     bool
	AccessList   []types.Address

	Substate *SubState

	// TxReversion snapshots every contract at tx start, for the finalizer's
	// revert and failure paths.
	TxReversion map[types.Address]*Contract
}

// Cache holds externally-fetched data that should survive across the
// driver's speculative rollbacks of individual symbolic-exploration paths,
// and the per-(location,iteration) path decisions recorded by the branch
// protocol.
type Cache struct {
	FetchedContracts map[types.Address]*Contract
	FetchedStorage   map[types.Address]map[[32]byte][32]byte
	Path             map[pathKey]bool
}

type pathKey struct {
	Loc  CodeLocation
	Iter int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		FetchedContracts: map[types.Address]*Contract{},
		FetchedStorage:   map[types.Address]map[[32]byte][32]byte{},
		Path:             map[pathKey]bool{},
	}
}

// RecordPath records which polarity of a branch at loc (on its iterIdx-th
// visit) was taken, so symbolic re-exploration can be driven externally.
func (c *Cache) RecordPath(loc CodeLocation, iterIdx int, taken bool) {
	c.Path[pathKey{Loc: loc, Iter: iterIdx}] = taken
}

// Merge unions two caches with last-write-wins semantics favoring other,
// resolving the unifyCachedContract/unifyCachedStorage open question:
// concrete maps are unioned, and on key collision the later (other) value
// wins.
func (c *Cache) Merge(other *Cache) *Cache {
	out := NewCache()
	for k, v := range c.FetchedContracts {
		out.FetchedContracts[k] = v
	}
	for k, v := range other.FetchedContracts {
		out.FetchedContracts[k] = v
	}
	for addr, slots := range c.FetchedStorage {
		m := map[[32]byte][32]byte{}
		for s, v := range slots {
			m[s] = v
		}
		out.FetchedStorage[addr] = m
	}
	for addr, slots := range other.FetchedStorage {
		m, ok := out.FetchedStorage[addr]
		if !ok {
			m = map[[32]byte][32]byte{}
			out.FetchedStorage[addr] = m
		}
		for s, v := range slots {
			m[s] = v
		}
	}
	for k, v := range c.Path {
		out.Path[k] = v
	}
	for k, v := range other.Path {
		out.Path[k] = v
	}
	return out
}
