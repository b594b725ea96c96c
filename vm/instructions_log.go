package vm

import (
	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// runLog implements LOG0..LOG4: pop offset/size then n topics, append a
// LogEntry. Staticness is already enforced generically by operation.writes
// in Step; gas is g_log + g_logdata·size + n·g_logtopic (spec.md §4.E).
func runLog(vm *VM, n int) *Err {
	offsetWord := vm.State.Stack.Pop()
	sizeWord := vm.State.Stack.Pop()
	topics := make([]expr.Word, n)
	for i := 0; i < n; i++ {
		topics[i] = vm.State.Stack.Pop()
	}

	offset, ok := forceConcreteU64(vm, offsetWord, "LOG offset")
	if !ok {
		return nil
	}
	size, ok := forceConcreteU64(vm, sizeWord, "LOG size")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(offset, size)); err != nil {
		return err
	}

	cost := LogGas(n, size)
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost

	region := expr.CopySlice(expr.LitU64(offset), expr.LitU64(0), expr.LitU64(size), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	data, ok := expr.ToBytes(region)
	if !ok {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "LOG over symbolic memory", region)
	}

	hashTopics := make([]types.Hash, n)
	for i, t := range topics {
		if lit, ok := expr.AsLit(t); ok {
			b := lit.Bytes32()
			hashTopics[i] = types.Hash(b)
		} else {
			return ErrUnexpectedSymbolicArg(vm.State.PC, "LOG topic must be concrete", t)
		}
	}

	entry := types.Log{Address: vm.State.Contract, Topics: hashTopics, Data: data}
	vm.Logs = append(vm.Logs, entry)
	vm.Traces.Insert(TraceNode{Kind: TraceLog, Addr: vm.State.Contract, Log: &entry})
	return nil
}
