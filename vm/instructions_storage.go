package vm

import (
	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// opSload requires a literal slot (this Store model indexes concrete
// (addr,slot) keys only); an unresolved lookup against an externally
// fetched account's AbstractStore suspends with a QueryFetchSlot. Warm/cold
// access cost is paid unconditionally, before the value is known.
func opSload(vm *VM) *Err {
	slotWord := vm.State.Stack.Pop()
	slotLit, ok := expr.AsLit(slotWord)
	if !ok {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "SLOAD slot must be concrete", slotWord)
	}
	addr := vm.State.Contract
	slot := slotLit.Bytes32()

	cold := vm.Tx.Substate.TouchStorageKey(addr, slot)
	cost := GasWarmStorageRead
	if cold {
		cost = GasColdSload
	}
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost

	val, resolved := expr.SLoad(addrToWord(addr), slotWord, vm.Env.Storage)
	if !resolved {
		vm.Suspend(Query{
			Kind: QueryFetchSlot,
			Addr: addr,
			Slot: slot,
			Loc:  CodeLocation{Addr: addr, PC: vm.State.PC},
		}, PendingOp{Kind: "sload", PC: vm.State.PC, StackArgs: []expr.Word{slotWord}})
		return nil
	}
	finishSload(vm, addr, slot, val)
	return nil
}

func finishSload(vm *VM, addr types.Address, slot [32]byte, val expr.Word) {
	if lit, ok := expr.AsLit(val); ok {
		vm.Env.RecordOrig(addr, slot, lit.Bytes32())
	}
	if err := push(vm, val); err != nil {
		vm.failFrame(err)
		return
	}
	vm.State.PC += 1
}

// opSstore applies the literal-case EIP-2200/3529 refund table; when the
// current or new value is symbolic it charges the flat g_sset (plus any
// cold-access surcharge) and leaves the refund counter untouched, per
// spec.md §4.E. Cold/warm is determined once, before any suspension.
func opSstore(vm *VM) *Err {
	slotWord := vm.State.Stack.Pop()
	newVal := vm.State.Stack.Pop()

	slotLit, ok := expr.AsLit(slotWord)
	if !ok {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "SSTORE slot must be concrete", slotWord)
	}
	addr := vm.State.Contract
	slot := slotLit.Bytes32()
	cold := vm.Tx.Substate.TouchStorageKey(addr, slot)

	currentWord, resolved := expr.SLoad(addrToWord(addr), slotWord, vm.Env.Storage)
	if !resolved {
		coldFlag := expr.LitU64(0)
		if cold {
			coldFlag = expr.LitU64(1)
		}
		vm.Suspend(Query{
			Kind: QueryFetchSlot,
			Addr: addr,
			Slot: slot,
			Loc:  CodeLocation{Addr: addr, PC: vm.State.PC},
		}, PendingOp{Kind: "sstore", PC: vm.State.PC, StackArgs: []expr.Word{slotWord, newVal, coldFlag}})
		return nil
	}
	return finishSstore(vm, addr, slot, currentWord, newVal, cold)
}

func finishSstore(vm *VM, addr types.Address, slot [32]byte, currentWord, newVal expr.Word, cold bool) *Err {
	currentLit, currentOk := expr.AsLit(currentWord)
	newLit, newOk := expr.AsLit(newVal)

	if !currentOk || !newOk {
		cost := GasSset
		if cold {
			cost += GasColdSload
		}
		if vm.State.Gas < cost {
			return ErrOutOfGas(vm.State.Gas, cost)
		}
		vm.State.Gas -= cost
		vm.Burned += cost
		vm.Env.Storage = expr.SStore(addrToWord(addr), expr.LitBytes(slot[:]), newVal, vm.Env.Storage)
		vm.State.PC += 1
		return nil
	}

	current := currentLit.Bytes32()
	newB := newLit.Bytes32()
	vm.Env.RecordOrig(addr, slot, current)
	original := vm.Env.Original(addr, slot, current)

	gas, refund := SstoreGas(original, current, newB, cold)
	if vm.State.Gas < gas {
		return ErrOutOfGas(vm.State.Gas, gas)
	}
	vm.State.Gas -= gas
	vm.Burned += gas
	if refund != 0 {
		vm.Tx.Substate.AddRefund(addr, refund)
	}
	vm.Env.Storage = expr.SStore(addrToWord(addr), expr.LitBytes(slot[:]), newVal, vm.Env.Storage)
	vm.State.PC += 1
	return nil
}
