package vm

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sbip-sg/hevm/core/types"
)

// StorageKey identifies one (address, slot) pair for the EIP-2929 access
// list, keyed by the slot's literal value — SLOAD/SSTORE reject a symbolic
// slot with UnexpectedSymbolicArg, so one is never inserted here.
type StorageKey struct {
	Addr types.Address
	Slot [32]byte
}

// Refund is one accrued SSTORE refund entry.
type Refund struct {
	Addr   types.Address
	Amount int64
}

// SubState is the per-transaction bookkeeping accrued across every frame,
// per spec.md §3. It is snapshotted into each Call/CreationContext's
// reversion so a revert can restore accessed_addresses / accessed_storage_keys
// survival semantics correctly (they are NOT rolled back, per Testable
// Property 5 / the EIP-2929 "access survives revert" rule) while
// selfdestructs/touched/refunds ARE rolled back on revert.
type SubState struct {
	Selfdestructs       mapset.Set[types.Address]
	Touched             mapset.Set[types.Address]
	AccessedAddresses   mapset.Set[types.Address]
	AccessedStorageKeys mapset.Set[StorageKey]
	Refunds             []Refund
}

// NewSubState returns an empty SubState; WarmTxOrigin pre-warms the tx
// sender/target/precompiles/access list into it.
func NewSubState() *SubState {
	return &SubState{
		Selfdestructs:       mapset.NewSet[types.Address](),
		Touched:             mapset.NewSet[types.Address](),
		AccessedAddresses:   mapset.NewSet[types.Address](),
		AccessedStorageKeys: mapset.NewSet[StorageKey](),
	}
}

// WarmTxOrigin pre-warms origin, to, precompiles 1..9, and the tx access
// list, satisfying invariant 7.
func (s *SubState) WarmTxOrigin(origin, to types.Address, accessList []types.Address) {
	s.AccessedAddresses.Add(origin)
	s.AccessedAddresses.Add(to)
	for i := byte(1); i <= 9; i++ {
		var a types.Address
		a[19] = i
		s.AccessedAddresses.Add(a)
	}
	for _, a := range accessList {
		s.AccessedAddresses.Add(a)
	}
}

// TouchAddress marks addr as warm, returning whether it was previously
// cold.
func (s *SubState) TouchAddress(addr types.Address) (wasCold bool) {
	wasCold = !s.AccessedAddresses.Contains(addr)
	s.AccessedAddresses.Add(addr)
	return wasCold
}

// TouchStorageKey marks (addr,slot) as warm, returning whether it was
// previously cold.
func (s *SubState) TouchStorageKey(addr types.Address, slot [32]byte) (wasCold bool) {
	k := StorageKey{Addr: addr, Slot: slot}
	wasCold = !s.AccessedStorageKeys.Contains(k)
	s.AccessedStorageKeys.Add(k)
	return wasCold
}

// AddRefund records one refund delta (positive or negative, per the §4.E
// policy table); the cap is applied only at finalization.
func (s *SubState) AddRefund(addr types.Address, amount int64) {
	s.Refunds = append(s.Refunds, Refund{Addr: addr, Amount: amount})
}

// TotalRefund sums every recorded refund.
func (s *SubState) TotalRefund() int64 {
	var total int64
	for _, r := range s.Refunds {
		total += r.Amount
	}
	return total
}

// Clone returns an independent copy, used when snapshotting into a frame's
// reversion context (accessed_addresses / accessed_storage_keys are shared
// by reference afterward since they survive revert — see RestoreFrom).
func (s *SubState) Clone() *SubState {
	cp := &SubState{
		Selfdestructs:       s.Selfdestructs.Clone(),
		Touched:             s.Touched.Clone(),
		AccessedAddresses:   s.AccessedAddresses,
		AccessedStorageKeys: s.AccessedStorageKeys,
		Refunds:             append([]Refund(nil), s.Refunds...),
	}
	return cp
}

// ripemdAddress is the RIPEMD-160 precompile, retained in Touched across a
// revert by the EIP-K.1 quirk below.
var ripemdAddress = types.Address{19: 0x03}

// RestoreFrom reverts s to the given snapshot, except for
// AccessedAddresses/AccessedStorageKeys which are never rolled back (EIP-2929
// survives revert) and are deliberately left untouched by this method.
//
// EIP-K.1 quirk: address 0x03 (RIPEMD-160) is retained in Touched across a
// reverting call if it is in Touched when the revert happens, including when
// it was first touched during the reverted call; preserved literally per
// spec.md §4.F.
func (s *SubState) RestoreFrom(snapshot *SubState) {
	wasTouched := s.Touched.Contains(ripemdAddress)
	s.Selfdestructs = snapshot.Selfdestructs.Clone()
	s.Touched = snapshot.Touched.Clone()
	if wasTouched {
		s.Touched.Add(ripemdAddress)
	}
	s.Refunds = append([]Refund(nil), snapshot.Refunds...)
}
