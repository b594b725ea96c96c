package expr

import "github.com/holiman/uint256"

// Store is a symbolic or concrete storage expression shared by every
// account (keyed by literal (address,slot) pairs inside the map, matching
// spec.md's Env.storage being "a unified symbolic/concrete storage
// expression" rather than a per-account map).
type Store interface {
	isStore()
}

// StoreKey identifies one storage slot of one account.
type StoreKey struct {
	Addr uint256.Int
	Slot uint256.Int
}

// ConcreteStore is a storage expression whose every write so far has had a
// literal address and slot.
type ConcreteStore struct{ Data map[StoreKey]Word }

func (ConcreteStore) isStore() {}

// NewConcreteStore returns an empty concrete store.
func NewConcreteStore() Store { return ConcreteStore{Data: map[StoreKey]Word{}} }

// WriteStore overlays one write (possibly symbolic address/slot/value) onto
// Base.
type WriteStore struct {
	Addr, Slot, Val Word
	Base            Store
}

func (WriteStore) isStore() {}

// AbstractStore is a named, wholly-unconstrained storage expression, used
// for an externally-fetched contract whose slots have not all been queried.
type AbstractStore struct{ Name string }

func (AbstractStore) isStore() {}

// SStore writes val at (addr,slot), folding into ConcreteStore when every
// operand is literal.
func SStore(addr, slot, val Word, s Store) Store {
	av, aok := AsLit(addr)
	sv, sok := AsLit(slot)
	if aok && sok {
		if cs, ok := s.(ConcreteStore); ok {
			out := make(map[StoreKey]Word, len(cs.Data)+1)
			for k, v := range cs.Data {
				out[k] = v
			}
			out[StoreKey{Addr: av, Slot: sv}] = val
			return ConcreteStore{Data: out}
		}
	}
	return WriteStore{Addr: addr, Slot: slot, Val: val, Base: s}
}

// SLoad looks up (addr,slot) in s. The second return is false when the
// value cannot be resolved without a query (e.g. an AbstractStore, or a
// WriteStore whose own address/slot is symbolic and doesn't obviously match
// or miss addr/slot).
func SLoad(addr, slot Word, s Store) (Word, bool) {
	av, aok := AsLit(addr)
	sv, sok := AsLit(slot)
	if !aok || !sok {
		return nil, false
	}
	for {
		switch v := s.(type) {
		case ConcreteStore:
			if val, found := v.Data[StoreKey{Addr: av, Slot: sv}]; found {
				return val, true
			}
			return LitU64(0), true
		case WriteStore:
			wa, waok := AsLit(v.Addr)
			ws, wsok := AsLit(v.Slot)
			if waok && wsok {
				if wa == av && ws == sv {
					return v.Val, true
				}
				s = v.Base
				continue
			}
			// A symbolic write anywhere in the chain means we cannot prove
			// this slot is unaffected by it; the caller must suspend.
			return nil, false
		case AbstractStore:
			return nil, false
		default:
			return nil, false
		}
	}
}

// MergeConcreteStores unifies two concrete stores with last-write-wins semantics
// favoring `overlay`. Resolves the §9 Open Question on unifyCachedStorage.
func MergeConcreteStores(base, overlay ConcreteStore) ConcreteStore {
	out := make(map[StoreKey]Word, len(base.Data)+len(overlay.Data))
	for k, v := range base.Data {
		out[k] = v
	}
	for k, v := range overlay.Data {
		out[k] = v
	}
	return ConcreteStore{Data: out}
}
