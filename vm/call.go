package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// CallKind distinguishes the four message-call opcodes' frame-push
// semantics (spec.md §4.F).
type CallKind int

const (
	KindCall CallKind = iota
	KindCallCode
	KindDelegateCall
	KindStaticCall
)

// callParams is the decoded stack layout of a CALL-family opcode.
type callParams struct {
	Kind               CallKind
	Gas                expr.Word
	Target             types.Address
	Value              *uint256.Int
	ArgsOffset, ArgsSize expr.Word
	OutOffset, OutSize   expr.Word
}

// execCall implements the shared body of CALL/CALLCODE/DELEGATECALL/
// STATICCALL: callChecks, the precompile/cheatcode inline paths, and frame
// push, per spec.md §4.F.
func execCall(vm *VM, p callParams) *Err {
	argsOffset, ok := forceConcreteU64(vm, p.ArgsOffset, "call args offset")
	if !ok {
		return nil
	}
	argsSize, ok := forceConcreteU64(vm, p.ArgsSize, "call args size")
	if !ok {
		return nil
	}
	outOffset, ok := forceConcreteU64(vm, p.OutOffset, "call out offset")
	if !ok {
		return nil
	}
	outSize, ok := forceConcreteU64(vm, p.OutSize, "call out size")
	if !ok {
		return nil
	}

	newMem := maxU64(NewMemSize(argsOffset, argsSize), NewMemSize(outOffset, outSize))
	if err := expandMemory(vm, newMem); err != nil {
		return err
	}

	if p.Value != nil && !p.Value.IsZero() && vm.State.Static && (p.Kind == KindCall || p.Kind == KindCallCode) {
		return ErrStateChangeWhileStatic
	}

	requested, ok := forceConcreteU64(vm, p.Gas, "call gas")
	if !ok {
		return nil
	}

	warm := !vm.Tx.Substate.TouchAddress(p.Target)
	recipient, exists := vm.Env.Contracts[p.Target]
	recipientExists := exists && !recipient.IsEmpty()
	var value uint64
	valueNonZero := p.Value != nil && !p.Value.IsZero()
	if valueNonZero {
		value = 1
	}
	cost, calleeGas := CostOfCall(recipientExists, value, vm.State.Gas, requested, warm)
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost

	caller := vm.State.Contract
	if vm.Prank != nil && vm.Prank.active {
		caller = vm.Prank.sender
	}
	if p.Value != nil && !p.Value.IsZero() {
		callerC := vm.Env.Contracts[caller]
		if callerC == nil || callerC.Balance.Cmp(p.Value) < 0 {
			_ = vm.State.Stack.Push(expr.LitU64(0))
			vm.State.Returndata = expr.EmptyBuf()
			vm.State.PC += OpSize(currentOp(vm))
			return nil
		}
	}
	if len(vm.Frames) >= MaxCallDepth {
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.Returndata = expr.EmptyBuf()
		vm.State.PC += OpSize(currentOp(vm))
		return nil
	}

	if isPrecompile(p.Target) {
		return execPrecompileCall(vm, p, calleeGas, argsOffset, argsSize, outOffset, outSize)
	}
	if p.Target == cheatCodeAddress {
		return execCheatcodeCall(vm, p, calleeGas, argsOffset, argsSize, outOffset, outSize)
	}

	vm.pushCallFrame(p, caller, calleeGas, argsOffset, argsSize, outOffset, outSize)
	return nil
}

// opCall, opCallcode, opDelegatecall, and opStaticcall pop each opcode's
// stack layout (gas is always on top, pushed last by the caller) and hand
// off to execCall's shared body.
func opCall(vm *VM) *Err {
	gas := vm.State.Stack.Pop()
	addrWord := vm.State.Stack.Pop()
	value := vm.State.Stack.Pop()
	argsOffset := vm.State.Stack.Pop()
	argsSize := vm.State.Stack.Pop()
	outOffset := vm.State.Stack.Pop()
	outSize := vm.State.Stack.Pop()

	target, ok := wordToAddr(vm, addrWord)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "CALL target must be concrete", addrWord))
		return nil
	}
	valueLit, ok := expr.AsLit(value)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "CALL value must be concrete", value))
		return nil
	}

	return execCall(vm, callParams{
		Kind: KindCall, Gas: gas, Target: target, Value: new(uint256.Int).Set(&valueLit),
		ArgsOffset: argsOffset, ArgsSize: argsSize, OutOffset: outOffset, OutSize: outSize,
	})
}

func opCallcode(vm *VM) *Err {
	gas := vm.State.Stack.Pop()
	addrWord := vm.State.Stack.Pop()
	value := vm.State.Stack.Pop()
	argsOffset := vm.State.Stack.Pop()
	argsSize := vm.State.Stack.Pop()
	outOffset := vm.State.Stack.Pop()
	outSize := vm.State.Stack.Pop()

	target, ok := wordToAddr(vm, addrWord)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "CALLCODE target must be concrete", addrWord))
		return nil
	}
	valueLit, ok := expr.AsLit(value)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "CALLCODE value must be concrete", value))
		return nil
	}

	return execCall(vm, callParams{
		Kind: KindCallCode, Gas: gas, Target: target, Value: new(uint256.Int).Set(&valueLit),
		ArgsOffset: argsOffset, ArgsSize: argsSize, OutOffset: outOffset, OutSize: outSize,
	})
}

func opDelegatecall(vm *VM) *Err {
	gas := vm.State.Stack.Pop()
	addrWord := vm.State.Stack.Pop()
	argsOffset := vm.State.Stack.Pop()
	argsSize := vm.State.Stack.Pop()
	outOffset := vm.State.Stack.Pop()
	outSize := vm.State.Stack.Pop()

	target, ok := wordToAddr(vm, addrWord)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "DELEGATECALL target must be concrete", addrWord))
		return nil
	}

	return execCall(vm, callParams{
		Kind: KindDelegateCall, Gas: gas, Target: target, Value: nil,
		ArgsOffset: argsOffset, ArgsSize: argsSize, OutOffset: outOffset, OutSize: outSize,
	})
}

func opStaticcall(vm *VM) *Err {
	gas := vm.State.Stack.Pop()
	addrWord := vm.State.Stack.Pop()
	argsOffset := vm.State.Stack.Pop()
	argsSize := vm.State.Stack.Pop()
	outOffset := vm.State.Stack.Pop()
	outSize := vm.State.Stack.Pop()

	target, ok := wordToAddr(vm, addrWord)
	if !ok {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, "STATICCALL target must be concrete", addrWord))
		return nil
	}

	return execCall(vm, callParams{
		Kind: KindStaticCall, Gas: gas, Target: target, Value: nil,
		ArgsOffset: argsOffset, ArgsSize: argsSize, OutOffset: outOffset, OutSize: outSize,
	})
}

func currentOp(vm *VM) OpCode { return vm.Contract().GetOp(vm.State.PC) }

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// pushCallFrame performs the value transfer and the frame push described in
// spec.md §4.F's table of per-kind (code_contract, contract, caller,
// callvalue, static) assignments.
func (vm *VM) pushCallFrame(p callParams, caller types.Address, calleeGas, argsOffset, argsSize, outOffset, outSize uint64) {
	target := p.Target
	calleeContract, ok := vm.Env.Contracts[target]
	if !ok {
		calleeContract = NewContract(target, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
		vm.Env.Contracts[target] = calleeContract
	}

	reversionContracts := cloneContracts(vm.Env.Contracts)
	reversionSubstate := vm.Tx.Substate.Clone()
	reversionStorage := vm.Env.Storage

	vm.State.PC += OpSize(currentOp(vm))

	vm.Tx.Substate.Touched.Add(target)
	if p.Value != nil && !p.Value.IsZero() {
		vm.Tx.Substate.Touched.Add(caller)
		callerC := vm.Env.Contracts[caller]
		callerC.Balance = new(uint256.Int).Sub(callerC.Balance, p.Value)
		calleeContract.Balance = new(uint256.Int).Add(calleeContract.Balance, p.Value)
	}

	var contractAddr, codeContractAddr types.Address
	var callvalue, callerWord expr.Word
	static := vm.State.Static

	switch p.Kind {
	case KindCall:
		contractAddr, codeContractAddr = target, target
		callerWord = addrToWord(caller)
		callvalue = wordFromUint(p.Value)
	case KindStaticCall:
		contractAddr, codeContractAddr = target, target
		callerWord = addrToWord(caller)
		callvalue = expr.LitU64(0)
		static = true
	case KindCallCode:
		contractAddr, codeContractAddr = caller, target
		callerWord = addrToWord(caller)
		callvalue = wordFromUint(p.Value)
	case KindDelegateCall:
		contractAddr, codeContractAddr = caller, target
		callerWord = vm.State.Caller
		callvalue = vm.State.Callvalue
	}

	calldata := expr.CopySlice(expr.LitU64(argsOffset), expr.LitU64(0), expr.LitU64(argsSize), vm.State.Memory.GetBuf(), expr.EmptyBuf())

	childState := NewFrameState(contractAddr, codeContractAddr, calleeContract.Code, calldata, callvalue, callerWord, calleeGas, static)

	frame := &Frame{
		State: vm.State,
		Context: CallContext{
			Target:             target,
			OutOffset:          outOffset,
			OutSize:            outSize,
			Codehash:           calleeContract.CodeHash,
			Data:               calldata,
			ReversionContracts: reversionContracts,
			ReversionStorage:   reversionStorage,
			ReversionSubstate:  reversionSubstate,
		},
	}
	vm.Frames = append(vm.Frames, frame)
	vm.State = childState
	vm.Traces.Push(TraceNode{Kind: TraceCall, Addr: target})
}

func isPrecompile(addr types.Address) bool {
	for i := 0; i < 19; i++ {
		if addr[i] != 0 {
			return false
		}
	}
	return addr[19] >= 1 && addr[19] <= 9
}
