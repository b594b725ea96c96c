package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// runFinalize completes the transaction once the top-level frame has
// produced a terminal (non-suspended) result: it settles the gas refund,
// pays the origin and coinbase, sweeps EIP-161 empty touched accounts, and
// populates vm.Result.
func runFinalize(vm *VM, outcome Outcome, output []byte) {
	var failErr *Err
	switch outcome {
	case OutcomeFailure:
		failErr = vm.Result.Err
		vm.State.Gas = 0 // a non-Revert failure burns all remaining gas
		vm.Env.Contracts = vm.Tx.TxReversion
		vm.Tx.Substate = NewSubState()
	case OutcomeRevert:
		vm.Env.Contracts = vm.Tx.TxReversion
		vm.Tx.Substate = NewSubState()
	}

	gasUsed := vm.Tx.TxGasLimit - vm.State.Gas
	maxRefund := gasUsed / MaxRefundQuotient
	refund := vm.Tx.Substate.TotalRefund()
	if refund < 0 {
		refund = 0
	}
	cappedRefund := uint64(refund)
	if cappedRefund > maxRefund {
		cappedRefund = maxRefund
	}

	gasRemaining := vm.State.Gas + cappedRefund
	gasUsed = vm.Tx.TxGasLimit - gasRemaining

	origin, ok := vm.Env.Contracts[vm.Tx.Origin]
	if ok && vm.Tx.GasPrice != nil {
		refundWei := new(uint256.Int).Mul(uint256.NewInt(gasRemaining), vm.Tx.GasPrice)
		origin.Balance = new(uint256.Int).Add(origin.Balance, refundWei)
	}

	if vm.Tx.PriorityFee != nil && !vm.Tx.PriorityFee.IsZero() {
		coinbase, ok := vm.Env.Contracts[vm.Block.Coinbase]
		if !ok {
			coinbase = NewContract(vm.Block.Coinbase, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
			vm.Env.Contracts[vm.Block.Coinbase] = coinbase
		}
		tip := new(uint256.Int).Mul(vm.Tx.PriorityFee, uint256.NewInt(gasUsed))
		coinbase.Balance = new(uint256.Int).Add(coinbase.Balance, tip)
		vm.Tx.Substate.Touched.Add(vm.Block.Coinbase)
	}

	sweepEmptyAccounts(vm)

	if outcome == OutcomeFailure {
		vm.Result = &VMResult{Outcome: OutcomeFailure, Err: failErr}
		return
	}
	vm.Result = &VMResult{Outcome: outcome, Output: output}
}

// sweepEmptyAccounts applies EIP-161: every selfdestructed address is
// removed outright, then every touched address left empty (zero nonce,
// zero balance, no code) is removed too.
func sweepEmptyAccounts(vm *VM) {
	for _, addr := range vm.Tx.Substate.Selfdestructs.ToSlice() {
		delete(vm.Env.Contracts, addr)
	}
	for _, addr := range vm.Tx.Substate.Touched.ToSlice() {
		c, ok := vm.Env.Contracts[addr]
		if ok && c.IsEmpty() {
			delete(vm.Env.Contracts, addr)
		}
	}
}
