package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

func opCreate(vm *VM) *Err {
	return execCreate(vm, nil)
}

func opCreate2(vm *VM) *Err {
	saltWord := vm.State.Stack.Pop()
	return execCreate(vm, &saltWord)
}

// execCreate implements CREATE/CREATE2's shared body: pop value/offset/size
// (and salt for CREATE2), read the init code out of memory, compute the
// child address, and push a creation frame (spec.md §4.F).
func execCreate(vm *VM, salt *expr.Word) *Err {
	valueWord := vm.State.Stack.Pop()
	offsetWord := vm.State.Stack.Pop()
	sizeWord := vm.State.Stack.Pop()

	if vm.State.Static {
		return ErrStateChangeWhileStatic
	}

	offset, ok := forceConcreteU64(vm, offsetWord, "CREATE offset")
	if !ok {
		return nil
	}
	size, ok := forceConcreteU64(vm, sizeWord, "CREATE size")
	if !ok {
		return nil
	}
	if size > MaxInitCodeSize {
		return ErrMaxCodeSizeExceeded(MaxInitCodeSize, int(size))
	}
	if err := expandMemory(vm, NewMemSize(offset, size)); err != nil {
		return err
	}

	initGasCost, childGas := CostOfCreate(vm.State.Gas, size)
	if vm.State.Gas < initGasCost {
		return ErrOutOfGas(vm.State.Gas, initGasCost)
	}
	vm.State.Gas -= initGasCost
	vm.Burned += initGasCost

	value, ok := expr.AsLit(valueWord)
	if !ok {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "CREATE value must be concrete", valueWord)
	}
	valueU := new(uint256.Int).Set(&value)

	self := vm.State.Contract
	selfC := vm.Env.Contracts[self]
	if selfC.Balance.Cmp(valueU) < 0 {
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		vm.State.Gas += childGas
		return nil
	}
	if len(vm.Frames) >= MaxCallDepth {
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		vm.State.Gas += childGas
		return nil
	}
	if selfC.Nonce == ^uint64(0) {
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		vm.State.Gas += childGas
		return nil
	}

	initRegion := expr.CopySlice(expr.LitU64(offset), expr.LitU64(0), expr.LitU64(size), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	initBytes, concreteInit := expr.ToBytes(initRegion)

	var newAddr types.Address
	if salt != nil {
		saltLit, ok := expr.AsLit(*salt)
		if !ok {
			return ErrUnexpectedSymbolicArg(vm.State.PC, "CREATE2 salt must be concrete", *salt)
		}
		if !concreteInit {
			return ErrUnexpectedSymbolicArg(vm.State.PC, "CREATE2 init code must be concrete to derive address", initRegion)
		}
		initHash := Keccak256(initBytes)
		newAddr = Create2Address(self, saltLit.Bytes32(), initHash)
	} else {
		newAddr = CreateAddress(self, selfC.Nonce)
	}

	selfC.Nonce++

	if existing, ok := vm.Env.Contracts[newAddr]; ok && !existing.IsEmpty() {
		// Address collision burns the full supplied gas (spec.md §4.F) rather
		// than refunding childGas like the balance/depth/nonce checks above.
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		return nil
	}

	reversionContracts := cloneContracts(vm.Env.Contracts)
	reversionSubstate := vm.Tx.Substate.Clone()
	reversionStorage := vm.Env.Storage

	vm.State.PC += OpSize(currentOp(vm))

	var initCode ContractCode
	if concreteInit {
		initCode = InitCode{ConcretePrefix: initBytes, SymbolicTail: expr.EmptyBuf()}
	} else {
		prefixLen, _ := expr.ConcPrefix(initRegion)
		prefixBytes, _ := expr.ToBytes(expr.CopySlice(expr.LitU64(0), expr.LitU64(0), expr.LitU64(uint64(prefixLen)), initRegion, expr.EmptyBuf()))
		tailLen := expr.Sub(expr.LitU64(size), expr.LitU64(uint64(prefixLen)))
		tail := expr.CopySlice(expr.LitU64(uint64(prefixLen)), expr.LitU64(0), tailLen, initRegion, expr.EmptyBuf())
		initCode = InitCode{ConcretePrefix: prefixBytes, SymbolicTail: tail}
	}

	newContract := NewContract(newAddr, initCode, uint256.NewInt(0), 1, types.Hash{}, false)
	vm.Env.Contracts[newAddr] = newContract
	vm.Tx.Substate.Touched.Add(newAddr)
	vm.Tx.Substate.Touched.Add(self)

	if !valueU.IsZero() {
		selfC.Balance = new(uint256.Int).Sub(selfC.Balance, valueU)
		newContract.Balance = new(uint256.Int).Add(newContract.Balance, valueU)
	}

	childState := NewFrameState(newAddr, newAddr, initCode, expr.EmptyBuf(), wordFromUint(valueU), addrToWord(self), childGas, false)

	frame := &Frame{
		State: vm.State,
		Context: CreationContext{
			Addr:               newAddr,
			Codehash:           types.Hash{},
			ReversionContracts: reversionContracts,
			ReversionStorage:   reversionStorage,
			ReversionSubstate:  reversionSubstate,
		},
	}
	vm.Frames = append(vm.Frames, frame)
	vm.State = childState
	vm.Traces.Push(TraceNode{Kind: TraceCreate, Addr: newAddr})
	return nil
}
