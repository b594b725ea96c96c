package vm

import (
	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// finishReturn / finishRevert / finishError implement the frame-ending
// cases of spec.md §4.F: every terminal opcode and every frame-ending error
// funnels through one of them. Call/create checks that fail before a frame
// is pushed (balance, depth, nonce) push 0 inline in execCall/execCreate.

// finishReturn completes the current frame with output successfully
// produced (RETURN, or an implicit STOP).
func (vm *VM) finishReturn(output []byte) {
	frame := vm.CurrentFrame()
	if frame == nil {
		vm.topLevelSuccess(output)
		return
	}
	childGas := vm.State.Gas
	switch ctx := frame.Context.(type) {
	case CallContext:
		vm.popFrame()
		vm.writeCallOutput(ctx, output)
		vm.State.Gas += childGas
		vm.State.Returndata = expr.FromBytes(output)
		_ = vm.State.Stack.Push(expr.LitU64(1))
	case CreationContext:
		if len(output) > MaxCodeSize {
			vm.finishError(ErrMaxCodeSizeExceeded(MaxCodeSize, len(output)))
			return
		}
		if len(output) > 0 && output[0] == 0xEF {
			vm.finishError(ErrInvalidFormat)
			return
		}
		depositCost := GasCodeDeposit * uint64(len(output))
		if childGas < depositCost {
			vm.finishError(ErrOutOfGas(childGas, depositCost))
			return
		}
		childGas -= depositCost
		newAddr := ctx.Addr
		if c, ok := vm.Env.Contracts[newAddr]; ok {
			c.Code = RuntimeCode{Buf: expr.FromBytes(output)}
			c.CodeHash = types.Hash(Keccak256(output))
			// The init code's jump analysis does not apply to the runtime code.
			c.analyzed, c.codeOps = false, nil
		}
		vm.popFrame()
		vm.State.Gas += childGas
		vm.State.Returndata = expr.EmptyBuf()
		_ = vm.State.Stack.Push(addrToWord(newAddr))
	}
}

// finishRevert completes the current frame with a REVERT: state reverts to
// the frame's reversion snapshot, but remaining gas is preserved.
func (vm *VM) finishRevert(output []byte) {
	frame := vm.CurrentFrame()
	if frame == nil {
		vm.topLevelRevert(output)
		return
	}
	childGas := vm.State.Gas
	switch ctx := frame.Context.(type) {
	case CallContext:
		vm.revertTo(ctx.ReversionContracts, ctx.ReversionStorage, ctx.ReversionSubstate)
		vm.popFrame()
		vm.writeCallOutput(ctx, output)
		vm.State.Gas += childGas
		vm.State.Returndata = expr.FromBytes(output)
		_ = vm.State.Stack.Push(expr.LitU64(0))
	case CreationContext:
		vm.revertToCreate(ctx)
		vm.popFrame()
		vm.State.Gas += childGas
		vm.State.Returndata = expr.FromBytes(output)
		_ = vm.State.Stack.Push(expr.LitU64(0))
	}
}

// finishError completes the current frame with a non-Revert error: state
// reverts and ALL of the child's remaining gas is burned.
func (vm *VM) finishError(e *Err) {
	frame := vm.CurrentFrame()
	if frame == nil {
		vm.topLevelFailure(e)
		return
	}
	switch ctx := frame.Context.(type) {
	case CallContext:
		vm.revertTo(ctx.ReversionContracts, ctx.ReversionStorage, ctx.ReversionSubstate)
	case CreationContext:
		vm.revertToCreate(ctx)
	}
	vm.popFrame()
	vm.State.Returndata = expr.EmptyBuf()
	_ = vm.State.Stack.Push(expr.LitU64(0))
}

// failFrame is the single entry point every opcode / call-check uses to
// abort the current frame: Revert goes through finishRevert (preserves
// gas), anything else burns it via finishError.
func (vm *VM) failFrame(e *Err) {
	if e.IsRevert() {
		vm.finishRevert(e.RevertBuf)
		return
	}
	vm.finishError(e)
}

func (vm *VM) popFrame() {
	parent := vm.Frames[len(vm.Frames)-1]
	vm.Frames = vm.Frames[:len(vm.Frames)-1]
	vm.State = parent.State
	vm.Traces.Pop()
}

func (vm *VM) writeCallOutput(ctx CallContext, output []byte) {
	if ctx.OutSize == 0 {
		return
	}
	n := ctx.OutSize
	if uint64(len(output)) < n {
		n = uint64(len(output))
	}
	vm.State.Memory.SetRange(ctx.OutOffset, expr.FromBytes(output), 0, n)
}

func (vm *VM) revertTo(contracts map[types.Address]*Contract, storage expr.Store, sub *SubState) {
	vm.Env.Contracts = contracts
	vm.Env.Storage = storage
	vm.Tx.Substate.RestoreFrom(sub)
}

func (vm *VM) revertToCreate(ctx CreationContext) {
	vm.Env.Contracts = ctx.ReversionContracts
	vm.Env.Storage = ctx.ReversionStorage
	vm.Tx.Substate.RestoreFrom(ctx.ReversionSubstate)
}

func (vm *VM) topLevelSuccess(output []byte) {
	runFinalize(vm, OutcomeSuccess, output)
}

func (vm *VM) topLevelRevert(output []byte) {
	runFinalize(vm, OutcomeRevert, output)
}

func (vm *VM) topLevelFailure(e *Err) {
	vm.Result = &VMResult{Outcome: OutcomeFailure, Err: e}
	runFinalize(vm, OutcomeFailure, nil)
}
