package vm

import "github.com/sbip-sg/hevm/expr"

func opPop(vm *VM) *Err {
	vm.State.Stack.Pop()
	return nil
}

func opMload(vm *VM) *Err {
	offsetWord := vm.State.Stack.Pop()
	offset, ok := forceConcreteU64(vm, offsetWord, "MLOAD offset")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(offset, 32)); err != nil {
		return err
	}
	return push(vm, vm.State.Memory.GetWord(offset))
}

func opMstore(vm *VM) *Err {
	offsetWord := vm.State.Stack.Pop()
	val := vm.State.Stack.Pop()
	offset, ok := forceConcreteU64(vm, offsetWord, "MSTORE offset")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(offset, 32)); err != nil {
		return err
	}
	vm.State.Memory.SetWord(offset, val)
	return nil
}

func opMstore8(vm *VM) *Err {
	offsetWord := vm.State.Stack.Pop()
	val := vm.State.Stack.Pop()
	offset, ok := forceConcreteU64(vm, offsetWord, "MSTORE8 offset")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(offset, 1)); err != nil {
		return err
	}
	vm.State.Memory.SetByte(offset, val)
	return nil
}

func opMsize(vm *VM) *Err { return push(vm, expr.LitU64(vm.State.Memory.Len())) }
