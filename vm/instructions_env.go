package vm

import (
	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

func opAddress(vm *VM) *Err   { return push(vm, addrToWord(vm.State.Contract)) }
func opOrigin(vm *VM) *Err    { return push(vm, addrToWord(vm.Tx.Origin)) }
func opCaller(vm *VM) *Err    { return push(vm, vm.State.Caller) }
func opCallvalue(vm *VM) *Err { return push(vm, vm.State.Callvalue) }
func opGasprice(vm *VM) *Err  { return push(vm, wordFromUint(vm.Tx.GasPrice)) }
func opChainid(vm *VM) *Err   { return push(vm, expr.LitU64(vm.Env.ChainID)) }
func opCoinbase(vm *VM) *Err  { return push(vm, addrToWord(vm.Block.Coinbase)) }
func opTimestamp(vm *VM) *Err { return push(vm, expr.LitU64(vm.Block.Timestamp)) }
func opNumber(vm *VM) *Err    { return push(vm, expr.LitU64(vm.Block.Number)) }
func opGaslimit(vm *VM) *Err  { return push(vm, expr.LitU64(vm.Block.GasLimit)) }
func opBasefee(vm *VM) *Err   { return push(vm, wordFromUint(vm.Block.BaseFee)) }
func opPrevrandao(vm *VM) *Err {
	return push(vm, expr.LitBytes(vm.Block.PrevRandao[:]))
}

// opBlockhash returns zero outside the last 256 blocks (the only range real
// clients retain); within range it returns a deterministic stand-in hash,
// since this interpreter has no real chain history to consult.
func opBlockhash(vm *VM) *Err {
	numWord := vm.State.Stack.Pop()
	num, ok := forceConcreteU64(vm, numWord, "BLOCKHASH block number")
	if !ok {
		return nil
	}
	cur := vm.Block.Number
	if num >= cur || cur-num > 256 {
		return push(vm, expr.LitU64(0))
	}
	h := Keccak256([]byte("blockhash"), uint64ToBytes(num))
	return push(vm, expr.LitBytes(h[:]))
}

func uint64ToBytes(v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b[:]
}

func opSelfbalance(vm *VM) *Err {
	c := vm.Contract()
	return push(vm, wordFromUint(c.Balance))
}

// opBalance charges cold/warm per EIP-2929; a nonexistent account reads as
// zero balance.
func opBalance(vm *VM) *Err {
	addrWord := vm.State.Stack.Pop()
	addr, ok := wordToAddr(vm, addrWord)
	if !ok {
		return nil
	}
	cold := vm.Tx.Substate.TouchAddress(addr)
	cost := GasWarmStorageRead
	if cold {
		cost = GasColdAccountAccess
	}
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost

	c, ok := vm.Env.Contracts[addr]
	if !ok {
		return push(vm, expr.LitU64(0))
	}
	return push(vm, wordFromUint(c.Balance))
}

func wordToAddr(vm *VM, w expr.Word) (types.Address, bool) {
	lit, ok := expr.AsLit(w)
	if !ok {
		return types.Address{}, false
	}
	b := lit.Bytes32()
	var a types.Address
	copy(a[:], b[12:])
	return a, true
}

func opCalldataload(vm *VM) *Err {
	off := vm.State.Stack.Pop()
	return push(vm, expr.ReadWord(off, vm.State.Calldata))
}
func opCalldatasize(vm *VM) *Err { return push(vm, expr.BufLength(vm.State.Calldata)) }

func opCalldatacopy(vm *VM) *Err {
	return runCopy(vm, vm.State.Calldata)
}

func opCodesize(vm *VM) *Err { return push(vm, vm.Contract().CodeLen()) }

func opCodecopy(vm *VM) *Err {
	return runCopy(vm, contractCodeBuf(vm.Contract()))
}

func contractCodeBuf(c *Contract) expr.Buf {
	switch code := c.Code.(type) {
	case RuntimeCode:
		return code.Buf
	case InitCode:
		return expr.CopySlice(expr.LitU64(0), expr.LitU64(uint64(len(code.ConcretePrefix))), expr.BufLength(code.SymbolicTail), code.SymbolicTail, expr.FromBytes(code.ConcretePrefix))
	default:
		return expr.EmptyBuf()
	}
}

func opExtcodesize(vm *VM) *Err {
	addrWord := vm.State.Stack.Pop()
	addr, ok := wordToAddr(vm, addrWord)
	if !ok {
		return nil
	}
	if err := chargeAccountAccess(vm, addr); err != nil {
		return err
	}
	c, ok := vm.Env.Contracts[addr]
	if !ok {
		return push(vm, expr.LitU64(0))
	}
	return push(vm, c.CodeLen())
}

func opExtcodehash(vm *VM) *Err {
	addrWord := vm.State.Stack.Pop()
	addr, ok := wordToAddr(vm, addrWord)
	if !ok {
		return nil
	}
	if err := chargeAccountAccess(vm, addr); err != nil {
		return err
	}
	c, ok := vm.Env.Contracts[addr]
	if !ok || c.IsEmpty() {
		return push(vm, expr.LitU64(0))
	}
	return push(vm, expr.LitBytes(c.CodeHash[:]))
}

func opExtcodecopy(vm *VM) *Err {
	addrWord := vm.State.Stack.Pop()
	addr, ok := wordToAddr(vm, addrWord)
	if !ok {
		return nil
	}
	if err := chargeAccountAccess(vm, addr); err != nil {
		return err
	}
	var code expr.Buf = expr.EmptyBuf()
	if c, ok := vm.Env.Contracts[addr]; ok {
		code = contractCodeBuf(c)
	}
	return runCopy(vm, code)
}

func chargeAccountAccess(vm *VM, addr types.Address) *Err {
	cold := vm.Tx.Substate.TouchAddress(addr)
	cost := GasWarmStorageRead
	if cold {
		cost = GasColdAccountAccess
	}
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost
	return nil
}

func opReturndatasize(vm *VM) *Err { return push(vm, expr.BufLength(vm.State.Returndata)) }

func opReturndatacopy(vm *VM) *Err {
	return runCopy(vm, vm.State.Returndata)
}

// runCopy implements the shared CALLDATACOPY/CODECOPY/EXTCODECOPY/
// RETURNDATACOPY stack layout: destOffset, srcOffset, size — expand
// memory, charge the per-word copy cost, then write the region.
func runCopy(vm *VM, src expr.Buf) *Err {
	destOffset := vm.State.Stack.Pop()
	srcOffset := vm.State.Stack.Pop()
	size := vm.State.Stack.Pop()

	destOff, ok := forceConcreteU64(vm, destOffset, "copy dest offset")
	if !ok {
		return nil
	}
	srcOff, ok := forceConcreteU64(vm, srcOffset, "copy src offset")
	if !ok {
		return nil
	}
	sz, ok := forceConcreteU64(vm, size, "copy size")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(destOff, sz)); err != nil {
		return err
	}
	copyCost := GasCopy * toWordSize(sz)
	if vm.State.Gas < copyCost {
		return ErrOutOfGas(vm.State.Gas, copyCost)
	}
	vm.State.Gas -= copyCost
	vm.Burned += copyCost

	vm.State.Memory.SetRange(destOff, src, srcOff, sz)
	return nil
}

// opKeccak256 forces offset & size to literals; a concrete memory region
// produces a literal hash and records the preimage, a symbolic region
// produces Keccak(buf) unresolved (spec.md §4.E).
func opKeccak256(vm *VM) *Err {
	offset := vm.State.Stack.Pop()
	size := vm.State.Stack.Pop()
	off, ok := forceConcreteU64(vm, offset, "KECCAK256 offset")
	if !ok {
		return nil
	}
	sz, ok := forceConcreteU64(vm, size, "KECCAK256 size")
	if !ok {
		return nil
	}
	if err := expandMemory(vm, NewMemSize(off, sz)); err != nil {
		return err
	}
	cost := GasSha3 + GasSha3Word*toWordSize(sz)
	if vm.State.Gas < cost {
		return ErrOutOfGas(vm.State.Gas, cost)
	}
	vm.State.Gas -= cost
	vm.Burned += cost

	region := expr.CopySlice(expr.LitU64(off), expr.LitU64(0), expr.LitU64(sz), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	if bs, ok := expr.ToBytes(region); ok {
		h := Keccak256(bs)
		var hb [32]byte = h
		vm.Env.Sha3Preimages[hb] = bs
		vm.KeccakEqs = append(vm.KeccakEqs, Prop{Kind: "keccak-eq", A: expr.LitBytes(hb[:]), B: nil})
		return push(vm, expr.LitBytes(hb[:]))
	}
	return push(vm, expr.Keccak{Buf: region})
}
