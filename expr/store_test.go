package expr

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestSStoreSLoadRoundTrip(t *testing.T) {
	s := NewConcreteStore()
	addr := LitU64(1)
	slot := LitU64(7)
	s = SStore(addr, slot, LitU64(42), s)

	val, ok := SLoad(addr, slot, s)
	if !ok {
		t.Fatalf("SLoad did not resolve a freshly-written concrete slot")
	}
	if !isEqLit(t, val, 42) {
		t.Errorf("SLoad = %v, want 42", val)
	}
}

func TestSLoadUnwrittenConcreteSlotIsZero(t *testing.T) {
	s := NewConcreteStore()
	val, ok := SLoad(LitU64(1), LitU64(99), s)
	if !ok {
		t.Fatalf("SLoad over a ConcreteStore should never need to suspend")
	}
	if !isEqLit(t, val, 0) {
		t.Errorf("unwritten slot = %v, want 0", val)
	}
}

func TestSLoadAbstractStoreSuspends(t *testing.T) {
	s := AbstractStore{Name: "ext"}
	_, ok := SLoad(LitU64(1), LitU64(0), s)
	if ok {
		t.Errorf("SLoad over an AbstractStore resolved without a fetch")
	}
}

func TestSLoadSymbolicSlotSuspends(t *testing.T) {
	s := NewConcreteStore()
	_, ok := SLoad(LitU64(1), Var{Name: "slot"}, s)
	if ok {
		t.Errorf("SLoad with a symbolic slot resolved without a fetch")
	}
}

func TestSStoreSymbolicAddrStaysWriteStore(t *testing.T) {
	s := NewConcreteStore()
	s = SStore(Var{Name: "addr"}, LitU64(0), LitU64(1), s)
	if _, ok := s.(WriteStore); !ok {
		t.Fatalf("SStore with a symbolic address should overlay a WriteStore, got %T", s)
	}
}

func TestSLoadSeesThroughUnrelatedConcreteWrite(t *testing.T) {
	// A write to a different, concrete (addr,slot) doesn't block resolution
	// of an unrelated slot further down the chain.
	s := NewConcreteStore()
	s = SStore(LitU64(1), LitU64(0), LitU64(99), s)
	s = SStore(LitU64(2), LitU64(0), LitU64(7), s)

	val, ok := SLoad(LitU64(1), LitU64(0), s)
	if !ok || !isEqLit(t, val, 99) {
		t.Errorf("SLoad(1,0) = (%v,%v), want (99,true)", val, ok)
	}
}

func TestMergeConcreteStoresOverlayWins(t *testing.T) {
	base := ConcreteStore{Data: map[StoreKey]Word{
		{Addr: mustLitVal(1), Slot: mustLitVal(0)}: LitU64(1),
	}}
	overlay := ConcreteStore{Data: map[StoreKey]Word{
		{Addr: mustLitVal(1), Slot: mustLitVal(0)}: LitU64(2),
		{Addr: mustLitVal(1), Slot: mustLitVal(1)}: LitU64(3),
	}}
	merged := MergeConcreteStores(base, overlay)
	val, ok := SLoad(LitU64(1), LitU64(0), merged)
	if !ok || !isEqLit(t, val, 2) {
		t.Errorf("merged slot 0 = (%v,%v), want (2,true) — overlay should win on collision", val, ok)
	}
	val2, ok2 := SLoad(LitU64(1), LitU64(1), merged)
	if !ok2 || !isEqLit(t, val2, 3) {
		t.Errorf("merged slot 1 = (%v,%v), want (3,true)", val2, ok2)
	}
}

func mustLitVal(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}
