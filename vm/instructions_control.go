package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

func opStop(vm *VM) *Err {
	vm.finishReturn(nil)
	return nil
}

func opJump(vm *VM) *Err {
	destWord := vm.State.Stack.Pop()
	dest, ok := forceConcreteU64(vm, destWord, "JUMP destination")
	if !ok {
		return nil
	}
	if !vm.Contract().ValidJumpdest(dest) {
		return ErrBadJumpDestination
	}
	vm.State.PC = dest
	return nil
}

// opJumpi branches locally when the condition is literal; a symbolic
// condition invokes the branch protocol (spec.md §4.H), suspending with a
// QueryAskSMT rather than guessing.
func opJumpi(vm *VM) *Err {
	destWord := vm.State.Stack.Pop()
	cond := vm.State.Stack.Pop()

	if _, ok := expr.AsLit(cond); ok {
		if expr.IsZero(cond) {
			vm.State.PC += 1
			return nil
		}
		dest, ok := forceConcreteU64(vm, destWord, "JUMPI destination")
		if !ok {
			return nil
		}
		if !vm.Contract().ValidJumpdest(dest) {
			return ErrBadJumpDestination
		}
		vm.State.PC = dest
		return nil
	}

	loc := CodeLocation{Addr: vm.State.Contract, PC: vm.State.PC}
	vm.Suspend(Query{
		Kind: QueryAskSMT,
		Cond: cond,
		Loc:  loc,
	}, PendingOp{Kind: "jumpi", PC: vm.State.PC, StackArgs: []expr.Word{destWord}})
	return nil
}

func opPc(vm *VM) *Err { return push(vm, expr.LitU64(vm.State.PC)) }

func opGas(vm *VM) *Err { return push(vm, expr.LitU64(vm.State.Gas)) }

func opJumpdest(vm *VM) *Err { return nil }

func opReturn(vm *VM) *Err {
	offsetWord := vm.State.Stack.Pop()
	sizeWord := vm.State.Stack.Pop()
	output, err := readOutputRegion(vm, offsetWord, sizeWord)
	if err != nil {
		return err
	}
	vm.finishReturn(output)
	return nil
}

func opRevert(vm *VM) *Err {
	offsetWord := vm.State.Stack.Pop()
	sizeWord := vm.State.Stack.Pop()
	output, err := readOutputRegion(vm, offsetWord, sizeWord)
	if err != nil {
		return err
	}
	vm.finishRevert(output)
	return nil
}

func readOutputRegion(vm *VM, offsetWord, sizeWord expr.Word) ([]byte, *Err) {
	offset, ok := forceConcreteU64(vm, offsetWord, "RETURN/REVERT offset")
	if !ok {
		return nil, nil
	}
	size, ok := forceConcreteU64(vm, sizeWord, "RETURN/REVERT size")
	if !ok {
		return nil, nil
	}
	if err := expandMemory(vm, NewMemSize(offset, size)); err != nil {
		return nil, err
	}
	region := expr.CopySlice(expr.LitU64(offset), expr.LitU64(0), expr.LitU64(size), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	bs, ok := expr.ToBytes(region)
	if !ok {
		return nil, ErrUnexpectedSymbolicArg(vm.State.PC, "RETURN/REVERT over symbolic memory", region)
	}
	return bs, nil
}

func opInvalid(vm *VM) *Err { return ErrUnrecognizedOpcode(byte(INVALID)) }

// opSelfdestruct transfers the full balance to the recipient and schedules
// self for removal at end of transaction (EIP-6049: deferred to end of tx,
// not an immediate RETURN-equivalent halt — but this interpreter still
// treats it as ending the current frame with empty output).
func opSelfdestruct(vm *VM) *Err {
	recipientWord := vm.State.Stack.Pop()
	recipient, ok := wordToAddr(vm, recipientWord)
	if !ok {
		return nil
	}

	cold := vm.Tx.Substate.TouchAddress(recipient)
	cost := uint64(0)
	if cold {
		cost = GasColdAccountAccess
	}

	self := vm.State.Contract
	selfC := vm.Env.Contracts[self]

	recipientC, exists := vm.Env.Contracts[recipient]
	if (!exists || recipientC.IsEmpty()) && selfC.Balance.Sign() > 0 {
		cost += GasSelfdestructNewAcc
	}
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost

	if !exists {
		recipientC = NewContract(recipient, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
		vm.Env.Contracts[recipient] = recipientC
	}
	if recipient != self {
		recipientC.Balance = new(uint256.Int).Add(recipientC.Balance, selfC.Balance)
		selfC.Balance = uint256.NewInt(0)
	}

	vm.Tx.Substate.Selfdestructs.Add(self)
	vm.Tx.Substate.TouchAddress(self)
	vm.Tx.Substate.Touched.Add(self)
	vm.Tx.Substate.Touched.Add(recipient)

	vm.finishReturn(nil)
	return nil
}
