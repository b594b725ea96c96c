package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

var (
	selectorFFI       = selector("ffi(string[])")
	selectorWarp      = selector("warp(uint256)")
	selectorRoll      = selector("roll(uint256)")
	selectorStore     = selector("store(address,bytes32,bytes32)")
	selectorLoad      = selector("load(address,bytes32)")
	selectorSign      = selector("sign(uint256,bytes32)")
	selectorAddr      = selector("addr(uint256)")
	selectorPrank     = selector("prank(address)")
	selectorStopPrank = selector("stopPrank()")
	selectorDeal      = selector("deal(address,uint256)")
)

func selector(sig string) [4]byte {
	h := Keccak256([]byte(sig))
	var s [4]byte
	copy(s[:], h[:4])
	return s
}

// prankState holds the single pending msg.sender override installed by
// prank/stopPrank; supplemented beyond spec.md §4.G per SPEC_FULL.md.
type prankState struct {
	active bool
	sender types.Address
}

// execCheatcodeCall dispatches a call to the cheatcode address (spec.md
// §4.G), decoding a 4-byte selector from calldata and returning its result
// inline, never pushing a frame.
func execCheatcodeCall(vm *VM, p callParams, calleeGas, argsOffset, argsSize, outOffset, outSize uint64) *Err {
	inputRegion := expr.CopySlice(expr.LitU64(argsOffset), expr.LitU64(0), expr.LitU64(argsSize), vm.State.Memory.GetBuf(), expr.EmptyBuf())
	input, concrete := expr.ToBytes(inputRegion)
	if !concrete || len(input) < 4 {
		return ErrBadCheatCode(nil)
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	body := input[4:]

	switch sel {
	case selectorFFI:
		return execFFI(vm, body, outOffset, outSize)
	case selectorWarp:
		vm.Block.Timestamp = word32At(body, 0).Uint64()
		return cheatSuccess(vm, nil, outOffset, outSize)
	case selectorRoll:
		vm.Block.Number = word32At(body, 0).Uint64()
		return cheatSuccess(vm, nil, outOffset, outSize)
	case selectorStore:
		addr := addrAt(body, 0)
		slot := bytes32At(body, 1)
		val := bytes32At(body, 2)
		vm.Env.Storage = expr.SStore(addrToWord(addr), expr.LitBytes(slot[:]), expr.LitBytes(val[:]), vm.Env.Storage)
		vm.Env.RecordOrig(addr, slot, val)
		return cheatSuccess(vm, nil, outOffset, outSize)
	case selectorLoad:
		addr := addrAt(body, 0)
		slot := bytes32At(body, 1)
		val, resolved := expr.SLoad(addrToWord(addr), expr.LitBytes(slot[:]), vm.Env.Storage)
		if !resolved {
			return ErrBadCheatCode(&sel)
		}
		lit, _ := expr.AsLit(val)
		out := lit.Bytes32()
		return cheatSuccess(vm, out[:], outOffset, outSize)
	case selectorSign:
		priv := word32At(body, 0)
		hash := bytes32At(body, 1)
		v, r, s := fixedNonceSign(priv, hash)
		out := make([]byte, 96)
		out[31] = v
		copy(out[32:64], r[:])
		copy(out[64:96], s[:])
		return cheatSuccess(vm, out, outOffset, outSize)
	case selectorAddr:
		priv := word32At(body, 0)
		a := privkeyToAddress(priv)
		out := make([]byte, 32)
		copy(out[12:], a[:])
		return cheatSuccess(vm, out, outOffset, outSize)
	case selectorPrank:
		vm.Prank = &prankState{active: true, sender: addrAt(body, 0)}
		return cheatSuccess(vm, nil, outOffset, outSize)
	case selectorStopPrank:
		vm.Prank = nil
		return cheatSuccess(vm, nil, outOffset, outSize)
	case selectorDeal:
		addr := addrAt(body, 0)
		newBal := word32At(body, 1)
		c, ok := vm.Env.Contracts[addr]
		if !ok {
			c = NewContract(addr, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
			vm.Env.Contracts[addr] = c
		}
		c.Balance = new(uint256.Int).SetBytes(newBal.Bytes())
		return cheatSuccess(vm, nil, outOffset, outSize)
	default:
		return ErrBadCheatCode(&sel)
	}
}

// execFFI runs only when vm.AllowFFI is set; otherwise the call reverts
// with an ABI-encoded Error(string), per spec.md §4.G. The VM itself never
// spawns the subprocess — it suspends with QueryDoFFI and leaves process
// execution to the driver, consistent with the "no P2P/front-end" split.
func execFFI(vm *VM, body []byte, outOffset, outSize uint64) *Err {
	if !vm.AllowFFI {
		return ErrRevert(abiEncodeError("FFI disabled"))
	}
	strArr, err := abi.NewType("string[]", "", nil)
	if err != nil {
		return ErrBadCheatCode(nil)
	}
	args := abi.Arguments{{Type: strArr}}
	values, err := args.UnpackValues(body)
	if err != nil || len(values) != 1 {
		return ErrBadCheatCode(nil)
	}
	argv, ok := values[0].([]string)
	if !ok {
		return ErrBadCheatCode(nil)
	}
	vm.Suspend(Query{
		Kind: QueryDoFFI,
		Argv: argv,
		Loc:  CodeLocation{Addr: vm.State.Contract, PC: vm.State.PC},
	}, PendingOp{Kind: "ffi", PC: vm.State.PC + OpSize(currentOp(vm)), StackArgs: []expr.Word{expr.LitU64(outOffset), expr.LitU64(outSize)}})
	return nil
}

func cheatSuccess(vm *VM, output []byte, outOffset, outSize uint64) *Err {
	if outSize > 0 && len(output) > 0 {
		n := outSize
		if uint64(len(output)) < n {
			n = uint64(len(output))
		}
		vm.State.Memory.SetRange(outOffset, expr.FromBytes(output), 0, n)
	}
	vm.State.Returndata = expr.FromBytes(output)
	_ = vm.State.Stack.Push(expr.LitU64(1))
	vm.State.PC += OpSize(currentOp(vm))
	return nil
}

func word32At(b []byte, i int) *big.Int {
	start := i * 32
	if start+32 > len(b) {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b[start : start+32])
}

func bytes32At(b []byte, i int) [32]byte {
	var out [32]byte
	start := i * 32
	if start+32 <= len(b) {
		copy(out[:], b[start:start+32])
	}
	return out
}

func addrAt(b []byte, i int) types.Address {
	start := i * 32
	var a types.Address
	if start+32 <= len(b) {
		copy(a[:], b[start+12:start+32])
	}
	return a
}

// fixedNonceSign signs hash with priv using the fixed ephemeral scalar
// k=420 and always reports v=28 — an intentional, preserved hevm
// idiosyncrasy (spec.md §4.G), not a real-world signing routine.
func fixedNonceSign(priv *big.Int, hash [32]byte) (v byte, r, s [32]byte) {
	curve := gethcrypto.S256()
	params := curve.Params()
	n := params.N
	k := big.NewInt(420)

	rx, _ := curve.ScalarBaseMult(k.Bytes())
	rBig := new(big.Int).Mod(rx, n)

	kInv := new(big.Int).ModInverse(k, n)
	e := new(big.Int).SetBytes(hash[:])
	sBig := new(big.Int).Mod(new(big.Int).Mul(kInv, new(big.Int).Add(e, new(big.Int).Mul(rBig, priv))), n)

	rBig.FillBytes(r[:])
	sBig.FillBytes(s[:])
	return 28, r, s
}

func privkeyToAddress(priv *big.Int) types.Address {
	key, err := gethcrypto.ToECDSA(priv.FillBytes(make([]byte, 32)))
	if err != nil {
		return types.Address{}
	}
	ethAddr := gethcrypto.PubkeyToAddress(key.PublicKey)
	var a types.Address
	copy(a[:], ethAddr[:])
	return a
}

// abiEncodeBytes wraps output as a standalone ABI-encoded dynamic `bytes`
// value (length word followed by the zero-padded data), the shape a
// Solidity caller's `vm.ffi(...)` returns for `abi.decode(..., (bytes))`.
func abiEncodeBytes(output []byte) []byte {
	padded := make([]byte, ((len(output)+31)/32)*32)
	copy(padded, output)

	out := make([]byte, 0, 32+len(padded))
	length := make([]byte, 32)
	new(big.Int).SetUint64(uint64(len(output))).FillBytes(length)
	out = append(out, length...)
	out = append(out, padded...)
	return out
}

// abiEncodeError builds the standard Error(string) revert payload.
func abiEncodeError(msg string) []byte {
	sel := selector("Error(string)")
	data := []byte(msg)
	padded := make([]byte, ((len(data)+31)/32)*32)
	copy(padded, data)

	out := make([]byte, 0, 4+32+32+len(padded))
	out = append(out, sel[:]...)
	offset := make([]byte, 32)
	offset[31] = 0x20
	out = append(out, offset...)
	length := make([]byte, 32)
	new(big.Int).SetUint64(uint64(len(data))).FillBytes(length)
	out = append(out, length...)
	out = append(out, padded...)
	return out
}
