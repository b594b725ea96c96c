// Package expr is the symbolic/concrete value layer the interpreter treats
// opaquely: 256-bit words, byte buffers, and storage maps that may be
// literal, a free symbol, or a tree of operations over either. The
// interpreter never inspects a Word/Buf/Store's shape directly — it only
// calls the constructors and query functions in this package, the same
// external-collaborator contract spec.md §6 describes.
//
// Word is a tagged sum expressed as one interface, a family of concrete
// structs, and a single arithmetic-folding switch instead of one struct per
// operator.
package expr

import "github.com/holiman/uint256"

// Word is a symbolic or concrete 256-bit EVM word.
type Word interface {
	isWord()
}

// Lit is a literal 256-bit value.
type Lit struct{ Val uint256.Int }

func (Lit) isWord() {}

// LitU64 builds a literal Word from a uint64.
func LitU64(v uint64) Word { return Lit{Val: *uint256.NewInt(v)} }

// LitBytes builds a literal Word from big-endian bytes, left-padded/
// truncated to 32 bytes like CALLDATALOAD/PUSH.
func LitBytes(b []byte) Word {
	var z uint256.Int
	z.SetBytes(b)
	return Lit{Val: z}
}

// Var is a free symbolic word, e.g. an unconstrained calldata word.
type Var struct{ Name string }

func (Var) isWord() {}

// Keccak is the (possibly symbolic) keccak256 hash of a buffer.
type Keccak struct{ Buf Buf }

func (Keccak) isWord() {}

// UnOp is a symbolic unary operation, tagged by opcode name ("not",
// "iszero", "signextend-msb", ...).
type UnOp struct {
	Op string
	X  Word
}

func (UnOp) isWord() {}

// BinOp is a symbolic binary operation, tagged by opcode name ("add",
// "slt", "shl", ...).
type BinOp struct {
	Op   string
	L, R Word
}

func (BinOp) isWord() {}

// AsLit returns the literal value of w and true, or the zero value and
// false if w is not (yet) resolvable to a literal.
func AsLit(w Word) (uint256.Int, bool) {
	if l, ok := w.(Lit); ok {
		return l.Val, true
	}
	return uint256.Int{}, false
}

// MustLit is AsLit but panics on a symbolic word; used only where the
// caller has already suspended on a non-literal and is certain the answer
// came back concrete (e.g. after a branch/SMT query resolved it).
func MustLit(w Word) uint256.Int {
	v, ok := AsLit(w)
	if !ok {
		panic("expr: MustLit on symbolic word")
	}
	return v
}

// IsZero reports whether w is the literal zero. Symbolic words are never
// "zero" in the sense a caller can rely on without a branch/SMT query.
func IsZero(w Word) bool {
	v, ok := AsLit(w)
	return ok && v.IsZero()
}

func lit(v uint256.Int) Word { return Lit{Val: v} }

func binFold(op string, l, r Word, f func(x, y *uint256.Int) uint256.Int) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return lit(f(&lv, &rv))
	}
	return BinOp{Op: op, L: l, R: r}
}

func unFold(op string, x Word, f func(v *uint256.Int) uint256.Int) Word {
	if v, ok := AsLit(x); ok {
		return lit(f(&v))
	}
	return UnOp{Op: op, X: x}
}

// Add, Sub, ... implement EVM arithmetic semantics (mod 2^256, div-by-zero
// == 0) by delegating to uint256's EVM-exact methods when both operands
// fold to literals.

func Add(l, r Word) Word {
	return binFold("add", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Add(x, y)
		return z
	})
}

func Sub(l, r Word) Word {
	return binFold("sub", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Sub(x, y)
		return z
	})
}

func Mul(l, r Word) Word {
	return binFold("mul", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Mul(x, y)
		return z
	})
}

func Div(l, r Word) Word {
	return binFold("div", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Div(x, y)
		return z
	})
}

func SDiv(l, r Word) Word {
	return binFold("sdiv", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.SDiv(x, y)
		return z
	})
}

func Mod(l, r Word) Word {
	return binFold("mod", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Mod(x, y)
		return z
	})
}

func SMod(l, r Word) Word {
	return binFold("smod", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.SMod(x, y)
		return z
	})
}

func AddMod(a, b, m Word) Word {
	av, aok := AsLit(a)
	bv, bok := AsLit(b)
	mv, mok := AsLit(m)
	if aok && bok && mok {
		var z uint256.Int
		z.AddMod(&av, &bv, &mv)
		return lit(z)
	}
	return BinOp{Op: "addmod", L: a, R: BinOp{Op: "addmod-rhs", L: b, R: m}}
}

func MulMod(a, b, m Word) Word {
	av, aok := AsLit(a)
	bv, bok := AsLit(b)
	mv, mok := AsLit(m)
	if aok && bok && mok {
		var z uint256.Int
		z.MulMod(&av, &bv, &mv)
		return lit(z)
	}
	return BinOp{Op: "mulmod", L: a, R: BinOp{Op: "mulmod-rhs", L: b, R: m}}
}

// Exp is priced by the caller (g_exp + g_expbyte per byte of the exponent)
// before this is called; a symbolic exponent cannot be priced and must be
// rejected by the caller (spec.md §4.E) before reaching Exp.
func Exp(base, exponent Word) Word {
	return binFold("exp", base, exponent, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Exp(x, y)
		return z
	})
}

func SignExtend(byteNum, x Word) Word {
	return binFold("signextend", byteNum, x, func(b, v *uint256.Int) uint256.Int {
		if !b.IsUint64() || b.Uint64() >= 32 {
			return *v
		}
		n := int(b.Uint64())
		bs := v.Bytes32()
		signByte := bs[31-n]
		fill := byte(0)
		if signByte&0x80 != 0 {
			fill = 0xff
		}
		for i := 0; i < 31-n; i++ {
			bs[i] = fill
		}
		var z uint256.Int
		z.SetBytes(bs[:])
		return z
	})
}

func boolWord(b bool) Word {
	if b {
		return LitU64(1)
	}
	return LitU64(0)
}

func Lt(l, r Word) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return boolWord(lv.Lt(&rv))
	}
	return BinOp{Op: "lt", L: l, R: r}
}

func Gt(l, r Word) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return boolWord(lv.Gt(&rv))
	}
	return BinOp{Op: "gt", L: l, R: r}
}

func Slt(l, r Word) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return boolWord(lv.Slt(&rv))
	}
	return BinOp{Op: "slt", L: l, R: r}
}

func Sgt(l, r Word) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return boolWord(lv.Sgt(&rv))
	}
	return BinOp{Op: "sgt", L: l, R: r}
}

func Eq(l, r Word) Word {
	lv, lok := AsLit(l)
	rv, rok := AsLit(r)
	if lok && rok {
		return boolWord(lv.Eq(&rv))
	}
	return BinOp{Op: "eq", L: l, R: r}
}

func IsZeroWord(x Word) Word {
	if v, ok := AsLit(x); ok {
		return boolWord(v.IsZero())
	}
	return UnOp{Op: "iszero", X: x}
}

func And(l, r Word) Word {
	return binFold("and", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.And(x, y)
		return z
	})
}

func Or(l, r Word) Word {
	return binFold("or", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Or(x, y)
		return z
	})
}

func Xor(l, r Word) Word {
	return binFold("xor", l, r, func(x, y *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Xor(x, y)
		return z
	})
}

func Not(x Word) Word {
	return unFold("not", x, func(v *uint256.Int) uint256.Int {
		var z uint256.Int
		z.Not(v)
		return z
	})
}

// Byte returns the i-th byte (0-indexed from the most significant byte) of
// x, or 0 if i >= 32.
func Byte(i, x Word) Word {
	return binFold("byte", i, x, func(idx, v *uint256.Int) uint256.Int {
		if !idx.IsUint64() || idx.Uint64() >= 32 {
			return uint256.Int{}
		}
		b32 := v.Bytes32()
		return *uint256.NewInt(uint64(b32[idx.Uint64()]))
	})
}

func isNegative(v *uint256.Int) bool {
	b32 := v.Bytes32()
	return b32[0]&0x80 != 0
}

func Shl(shift, val Word) Word {
	return binFold("shl", shift, val, func(s, v *uint256.Int) uint256.Int {
		if !s.IsUint64() || s.Uint64() >= 256 {
			return uint256.Int{}
		}
		var z uint256.Int
		z.Lsh(v, uint(s.Uint64()))
		return z
	})
}

func Shr(shift, val Word) Word {
	return binFold("shr", shift, val, func(s, v *uint256.Int) uint256.Int {
		if !s.IsUint64() || s.Uint64() >= 256 {
			return uint256.Int{}
		}
		var z uint256.Int
		z.Rsh(v, uint(s.Uint64()))
		return z
	})
}

func Sar(shift, val Word) Word {
	return binFold("sar", shift, val, func(s, v *uint256.Int) uint256.Int {
		if !s.IsUint64() || s.Uint64() >= 256 {
			if isNegative(v) {
				var z uint256.Int
				z.SetAllOne()
				return z
			}
			return uint256.Int{}
		}
		var z uint256.Int
		z.SRsh(v, uint(s.Uint64()))
		return z
	})
}
