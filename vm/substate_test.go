package vm

import (
	"testing"

	"github.com/sbip-sg/hevm/core/types"
)

func TestWarmTxOriginPrewarmsPrecompiles(t *testing.T) {
	s := NewSubState()
	origin := types.Address{19: 0xaa}
	to := types.Address{19: 0xbb}
	s.WarmTxOrigin(origin, to, nil)

	if !s.AccessedAddresses.Contains(origin) || !s.AccessedAddresses.Contains(to) {
		t.Errorf("origin and to should be pre-warmed")
	}
	for i := byte(1); i <= 9; i++ {
		var a types.Address
		a[19] = i
		if !s.AccessedAddresses.Contains(a) {
			t.Errorf("precompile %d should be pre-warmed", i)
		}
	}
}

func TestWarmTxOriginIncludesAccessList(t *testing.T) {
	s := NewSubState()
	extra := types.Address{19: 0x42}
	s.WarmTxOrigin(types.Address{}, types.Address{}, []types.Address{extra})
	if !s.AccessedAddresses.Contains(extra) {
		t.Errorf("tx access list entries should be pre-warmed")
	}
}

func TestTouchAddressReportsColdOnce(t *testing.T) {
	s := NewSubState()
	addr := types.Address{19: 0x01}
	if cold := s.TouchAddress(addr); !cold {
		t.Errorf("first touch should report cold")
	}
	if cold := s.TouchAddress(addr); cold {
		t.Errorf("second touch should report warm")
	}
}

func TestTouchStorageKeyIsPerAddrSlot(t *testing.T) {
	s := NewSubState()
	addr := types.Address{19: 0x01}
	var slotA, slotB [32]byte
	slotB[31] = 1

	if cold := s.TouchStorageKey(addr, slotA); !cold {
		t.Errorf("first touch of slotA should report cold")
	}
	if cold := s.TouchStorageKey(addr, slotA); cold {
		t.Errorf("second touch of slotA should report warm")
	}
	if cold := s.TouchStorageKey(addr, slotB); !cold {
		t.Errorf("a different slot at the same address should still be cold")
	}
}

func TestTotalRefundSumsEntries(t *testing.T) {
	s := NewSubState()
	addr := types.Address{19: 0x01}
	s.AddRefund(addr, 100)
	s.AddRefund(addr, -30)
	if got := s.TotalRefund(); got != 70 {
		t.Errorf("TotalRefund = %d, want 70", got)
	}
}

// RestoreFrom must roll back Selfdestructs/Touched/Refunds but leave the
// EIP-2929 access lists untouched (they survive a revert).
func TestRestoreFromSelectiveRollback(t *testing.T) {
	s := NewSubState()
	addr := types.Address{19: 0x01}
	other := types.Address{19: 0x02}

	s.AccessedAddresses.Add(addr)
	snapshot := s.Clone()

	s.Selfdestructs.Add(addr)
	s.Touched.Add(addr)
	s.AddRefund(addr, 50)
	s.AccessedAddresses.Add(other) // warmed after the snapshot

	s.RestoreFrom(snapshot)

	if s.Selfdestructs.Contains(addr) {
		t.Errorf("Selfdestructs should be rolled back")
	}
	if s.Touched.Contains(addr) {
		t.Errorf("Touched should be rolled back")
	}
	if s.TotalRefund() != 0 {
		t.Errorf("Refunds should be rolled back, got total %d", s.TotalRefund())
	}
	if !s.AccessedAddresses.Contains(other) {
		t.Errorf("AccessedAddresses must survive a revert, lost %v", other)
	}
}

// EIP-K.1: address 0x03 (RIPEMD-160) touched only during a call that then
// reverts still stays in Touched afterward, unlike every other address
// touched during that same call.
func TestRestoreFromRipemdQuirk(t *testing.T) {
	s := NewSubState()
	ripemd := types.Address{19: 0x03}
	other := types.Address{19: 0x07}
	snapshot := s.Clone() // neither address touched yet

	s.Touched.Add(ripemd)
	s.Touched.Add(other)
	s.RestoreFrom(snapshot)

	if !s.Touched.Contains(ripemd) {
		t.Errorf("0x03 should survive a revert under EIP-K.1 even if only touched during the call")
	}
	if s.Touched.Contains(other) {
		t.Errorf("ordinary touched addresses should still roll back")
	}
}

func TestRestoreFromDoesNotAddRipemdIfNeverTouched(t *testing.T) {
	s := NewSubState()
	ripemd := types.Address{19: 0x03}
	snapshot := s.Clone()

	s.RestoreFrom(snapshot)

	if s.Touched.Contains(ripemd) {
		t.Errorf("0x03 should not be introduced by RestoreFrom if it was never touched")
	}
}

func TestCloneIsIndependentForRolledBackSets(t *testing.T) {
	s := NewSubState()
	addr := types.Address{19: 0x01}
	cp := s.Clone()

	s.Selfdestructs.Add(addr)
	s.Touched.Add(addr)

	if cp.Selfdestructs.Contains(addr) {
		t.Errorf("clone's Selfdestructs should not see mutations made after Clone")
	}
	if cp.Touched.Contains(addr) {
		t.Errorf("clone's Touched should not see mutations made after Clone")
	}
}
