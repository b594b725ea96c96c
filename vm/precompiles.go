package vm

import (
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"

	"github.com/sbip-sg/hevm/expr"
)

// execPrecompileCall runs addresses 1..9 inline rather than pushing a frame,
// per spec.md §4.F's precompile path. It delegates the actual cryptography
// to go-ethereum's precompile table so this interpreter never reimplements
// ecrecover/modexp/bn254/blake2f itself.
func execPrecompileCall(vm *VM, p callParams, calleeGas, argsOffset, argsSize, outOffset, outSize uint64) *Err {
	pc, ok := gethvm.PrecompiledContractsBerlin[gethcommon.Address(p.Target)]
	if !ok {
		return ErrPrecompileFailure
	}

	inputRegion := expr.CopySlice(expr.LitU64(argsOffset), expr.LitU64(0), expr.LitU64(argsSize), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	input, concrete := expr.ToBytes(inputRegion)
	if !concrete {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "precompile input must be concrete", inputRegion)
	}

	cost := pc.RequiredGas(input)
	if calleeGas < cost {
		vm.State.Returndata = expr.EmptyBuf()
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		return nil
	}

	output, err := pc.Run(input)
	remaining := calleeGas - cost
	if err != nil {
		vm.State.Returndata = expr.EmptyBuf()
		_ = vm.State.Stack.Push(expr.LitU64(0))
		vm.State.PC += OpSize(currentOp(vm))
		return nil
	}

	if outSize > 0 {
		n := outSize
		if uint64(len(output)) < n {
			n = uint64(len(output))
		}
		vm.State.Memory.SetRange(outOffset, expr.FromBytes(output), 0, n)
	}
	vm.State.Returndata = expr.FromBytes(output)
	vm.State.Gas += remaining
	_ = vm.State.Stack.Push(expr.LitU64(1))
	vm.State.PC += OpSize(currentOp(vm))
	return nil
}
