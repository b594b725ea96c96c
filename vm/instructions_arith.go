package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/expr"
)

// Arithmetic, comparison, and bitwise opcodes all share the same shape:
// pop operand(s), fold/build the result through the expr package, push.
// These never need memory or storage, so they never suspend.

func push(vm *VM, w expr.Word) *Err {
	if err := vm.State.Stack.Push(w); err != nil {
		if e, ok := err.(*Err); ok {
			return e
		}
		return ErrStackLimitExceeded
	}
	return nil
}

func opAdd(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Add(l, r))
}
func opMul(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Mul(l, r))
}
func opSub(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Sub(l, r))
}
func opDiv(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Div(l, r))
}
func opSdiv(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.SDiv(l, r))
}
func opMod(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Mod(l, r))
}
func opSmod(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.SMod(l, r))
}
func opAddmod(vm *VM) *Err {
	a, b, m := vm.State.Stack.Pop(), vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.AddMod(a, b, m))
}
func opMulmod(vm *VM) *Err {
	a, b, m := vm.State.Stack.Pop(), vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.MulMod(a, b, m))
}

// opExp gas-burns g_exp + g_expbyte*ceil((1+log2(exp))/8) which, for a
// literal exponent, is simply g_exp + g_expbyte per nonzero-trimmed byte of
// its big-endian form; a symbolic exponent cannot be priced and must
// suspend with UnexpectedSymbolicArg (spec.md §4.E).
func opExp(vm *VM) *Err {
	base := vm.State.Stack.Pop()
	exponent := vm.State.Stack.Pop()
	lit, ok := expr.AsLit(exponent)
	if !ok {
		return ErrUnexpectedSymbolicArg(vm.State.PC, "EXP exponent must be concrete for pricing", exponent)
	}
	byteLen := expByteLen(lit)
	cost := ExpGas(byteLen)
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost
	return push(vm, expr.Exp(base, exponent))
}

func expByteLen(v uint256.Int) int {
	b := v.Bytes32()
	for i := 0; i < 32; i++ {
		if b[i] != 0 {
			return 32 - i
		}
	}
	return 0
}

func opSignExtend(vm *VM) *Err {
	b, x := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.SignExtend(b, x))
}

func opLt(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Lt(l, r))
}
func opGt(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Gt(l, r))
}
func opSlt(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Slt(l, r))
}
func opSgt(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Sgt(l, r))
}
func opEq(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Eq(l, r))
}
func opIszero(vm *VM) *Err {
	x := vm.State.Stack.Pop()
	return push(vm, expr.IsZeroWord(x))
}
func opAnd(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.And(l, r))
}
func opOr(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Or(l, r))
}
func opXor(vm *VM) *Err {
	l, r := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Xor(l, r))
}
func opNot(vm *VM) *Err {
	x := vm.State.Stack.Pop()
	return push(vm, expr.Not(x))
}
func opByte(vm *VM) *Err {
	i, x := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Byte(i, x))
}
func opShl(vm *VM) *Err {
	shift, val := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Shl(shift, val))
}
func opShr(vm *VM) *Err {
	shift, val := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Shr(shift, val))
}
func opSar(vm *VM) *Err {
	shift, val := vm.State.Stack.Pop(), vm.State.Stack.Pop()
	return push(vm, expr.Sar(shift, val))
}

// runPush handles PUSH0..PUSH32: a literal big-endian pack when the push
// data is fully concrete, otherwise a symbolic n-byte read at the push
// data's offset in the contract's code buffer (spec.md §4.E).
func runPush(vm *VM, n int) *Err {
	contract := vm.Contract()
	start := vm.State.PC + 1
	bs, ok := contract.codeBytes()
	if ic, isInit := contract.Code.(InitCode); !ok && isInit && start+uint64(n) <= uint64(len(ic.ConcretePrefix)) {
		// The push data lies wholly inside the init code's concrete prefix.
		bs, ok = ic.ConcretePrefix, true
	}
	if ok {
		window := make([]byte, n)
		for i := 0; i < n; i++ {
			if int(start)+i < len(bs) {
				window[i] = bs[start+uint64(i)]
			}
		}
		if err := push(vm, expr.LitBytes(window)); err != nil {
			return err
		}
		vm.State.PC += uint64(n) + 1
		return nil
	}
	// The PUSH data straddles a symbolic region of the code (a CREATE
	// init-code's symbolic tail): build a buffer from the code and read an
	// n-byte, left-aligned, zero-padded word at the current offset instead
	// of requiring the whole contract to be concrete.
	word := expr.ReadBytes(n, expr.LitU64(start), contractCodeBuf(contract))
	if err := push(vm, word); err != nil {
		return err
	}
	vm.State.PC += uint64(n) + 1
	return nil
}

func opPush0(vm *VM) *Err {
	if err := push(vm, expr.LitU64(0)); err != nil {
		return err
	}
	vm.State.PC += 1
	return nil
}

func runDup(vm *VM, n int) *Err {
	if err := vm.State.Stack.Dup(n); err != nil {
		if e, ok := err.(*Err); ok {
			return e
		}
		return ErrStackLimitExceeded
	}
	return nil
}

func runSwap(vm *VM, n int) *Err {
	vm.State.Stack.Swap(n)
	return nil
}
