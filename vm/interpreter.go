package vm

var shanghaiJumpTable = NewShanghaiJumpTable()

// Step executes exactly one opcode against vm.State, per spec.md §4.E. It
// is a no-op if vm.Result is already set (suspended or terminal) — the
// driver must clear a suspension via one of the Resolve* methods before
// calling Step again.
func (vm *VM) Step() {
	if vm.Result != nil {
		return
	}

	contract := vm.Contract()
	opByte := contract.GetOp(vm.State.PC)
	opDef := shanghaiJumpTable[opByte]
	if opDef == nil {
		vm.failFrame(ErrUnrecognizedOpcode(byte(opByte)))
		return
	}

	if vm.State.Stack.Len() < opDef.minStack {
		vm.failFrame(ErrStackUnderrun)
		return
	}
	if vm.State.Stack.Len() > opDef.maxStack {
		vm.failFrame(ErrStackLimitExceeded)
		return
	}
	if opDef.writes && vm.State.Static {
		vm.failFrame(ErrStateChangeWhileStatic)
		return
	}

	if vm.State.Gas < opDef.constantGas {
		vm.failFrame(ErrOutOfGas(vm.State.Gas, opDef.constantGas))
		return
	}
	vm.State.Gas -= opDef.constantGas
	vm.Burned += opDef.constantGas

	vm.Traces.Insert(TraceNode{Kind: TraceOpcode, Op: opByte})

	before := vm.State.PC
	if err := opDef.execute(vm); err != nil {
		vm.failFrame(err)
		return
	}
	if vm.Result != nil {
		// execute() already terminated or suspended the frame (STOP/
		// RETURN/REVERT/SELFDESTRUCT/CALL-family/a forceConcrete halt).
		return
	}
	if vm.State.PC == before {
		vm.State.PC += OpSize(opByte)
	}
}

// expandMemory grows vm.State.Memory to cover newSize bytes (already
// word-rounded by the caller via NewMemSize), charging the incremental
// memory_cost gas.
func expandMemory(vm *VM, newSize uint64) *Err {
	if newSize <= vm.State.Memory.Len() {
		return nil
	}
	cost := MemoryExpansionGas(vm.State.Memory.Len(), newSize)
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost
	vm.State.Memory.Resize(newSize)
	return nil
}
