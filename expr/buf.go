package expr

import "github.com/holiman/uint256"

// Buf is a symbolic or concrete byte buffer: memory, calldata, return data,
// or code. Writes/slices against a fully-concrete Buf at literal offsets
// fold back into a ConcreteBuf eagerly, so ordinary concrete execution never
// grows a write tree.
type Buf interface {
	isBuf()
}

// ConcreteBuf is a buffer whose full contents are known.
type ConcreteBuf struct{ Bytes []byte }

func (ConcreteBuf) isBuf() {}

// AbstractBuf is a named buffer of unknown (possibly symbolic) length, e.g.
// calldata for a function called with unconstrained input.
type AbstractBuf struct{ Name string }

func (AbstractBuf) isBuf() {}

// WriteWordBuf overlays a 32-byte word write at Offset onto Base.
type WriteWordBuf struct {
	Offset Word
	Val    Word
	Base   Buf
}

func (WriteWordBuf) isBuf() {}

// WriteByteBuf overlays a single-byte write at Offset onto Base.
type WriteByteBuf struct {
	Offset Word
	Val    Word
	Base   Buf
}

func (WriteByteBuf) isBuf() {}

// CopySliceBuf overlays Size bytes copied from Src[SrcOffset:] into
// Dst[DstOffset:].
type CopySliceBuf struct {
	SrcOffset, DstOffset, Size Word
	Src, Dst                   Buf
}

func (CopySliceBuf) isBuf() {}

// FromBytes builds a ConcreteBuf from a concrete byte slice (copied).
func FromBytes(b []byte) Buf {
	cp := make([]byte, len(b))
	copy(cp, b)
	return ConcreteBuf{Bytes: cp}
}

// EmptyBuf is the zero-length concrete buffer.
func EmptyBuf() Buf { return ConcreteBuf{} }

// ToBytes returns the fully-concrete contents of b, or false if any part of
// b is symbolic.
func ToBytes(b Buf) ([]byte, bool) {
	switch v := b.(type) {
	case ConcreteBuf:
		out := make([]byte, len(v.Bytes))
		copy(out, v.Bytes)
		return out, true
	case WriteWordBuf:
		base, ok := ToBytes(v.Base)
		off, offOk := AsLit(v.Offset)
		val, valOk := AsLit(v.Val)
		if !ok || !offOk || !valOk || !off.IsUint64() {
			return nil, false
		}
		return writeWordBytes(base, off.Uint64(), val), true
	case WriteByteBuf:
		base, ok := ToBytes(v.Base)
		off, offOk := AsLit(v.Offset)
		val, valOk := AsLit(v.Val)
		if !ok || !offOk || !valOk || !off.IsUint64() {
			return nil, false
		}
		return writeByteBytes(base, off.Uint64(), byte(val.Uint64())), true
	case CopySliceBuf:
		src, sok := ToBytes(v.Src)
		dst, dok := ToBytes(v.Dst)
		so, soOk := AsLit(v.SrcOffset)
		do, doOk := AsLit(v.DstOffset)
		sz, szOk := AsLit(v.Size)
		if !sok || !dok || !soOk || !doOk || !szOk || !so.IsUint64() || !do.IsUint64() || !sz.IsUint64() {
			return nil, false
		}
		return copySliceBytes(src, dst, so.Uint64(), do.Uint64(), sz.Uint64()), true
	default:
		return nil, false
	}
}

func ensureLen(b []byte, n uint64) []byte {
	if uint64(len(b)) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func writeWordBytes(base []byte, off uint64, val uint256.Int) []byte {
	out := ensureLen(base, off+32)
	w := val.Bytes32()
	copy(out[off:off+32], w[:])
	return out
}

func writeByteBytes(base []byte, off uint64, val byte) []byte {
	out := ensureLen(base, off+1)
	out[off] = val
	return out
}

func copySliceBytes(src, dst []byte, srcOff, dstOff, size uint64) []byte {
	out := ensureLen(dst, dstOff+size)
	for i := uint64(0); i < size; i++ {
		if srcOff+i < uint64(len(src)) {
			out[dstOff+i] = src[srcOff+i]
		} else {
			out[dstOff+i] = 0
		}
	}
	return out
}

// WriteWord writes a 32-byte word at a literal or symbolic offset, folding
// eagerly to a ConcreteBuf when every operand is literal.
func WriteWord(offset, val Word, base Buf) Buf {
	if off, ok := AsLit(offset); ok {
		if v, ok2 := AsLit(val); ok2 {
			if b, ok3 := ToBytes(base); ok3 && off.IsUint64() {
				return ConcreteBuf{Bytes: writeWordBytes(b, off.Uint64(), v)}
			}
		}
	}
	return WriteWordBuf{Offset: offset, Val: val, Base: base}
}

// WriteByte writes a single byte (the low byte of val) at offset.
func WriteByte(offset, val Word, base Buf) Buf {
	if off, ok := AsLit(offset); ok {
		if v, ok2 := AsLit(val); ok2 {
			if b, ok3 := ToBytes(base); ok3 && off.IsUint64() {
				return ConcreteBuf{Bytes: writeByteBytes(b, off.Uint64(), byte(v.Uint64()))}
			}
		}
	}
	return WriteByteBuf{Offset: offset, Val: val, Base: base}
}

// CopySlice copies size bytes from src[srcOffset:] to dst[dstOffset:],
// zero-filling any read past the end of src.
func CopySlice(srcOffset, dstOffset, size Word, src, dst Buf) Buf {
	so, soOk := AsLit(srcOffset)
	do, doOk := AsLit(dstOffset)
	sz, szOk := AsLit(size)
	if soOk && doOk && szOk && so.IsUint64() && do.IsUint64() && sz.IsUint64() {
		if srcB, ok := ToBytes(src); ok {
			if dstB, ok2 := ToBytes(dst); ok2 {
				return ConcreteBuf{Bytes: copySliceBytes(srcB, dstB, so.Uint64(), do.Uint64(), sz.Uint64())}
			}
		}
	}
	return CopySliceBuf{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size, Src: src, Dst: dst}
}

// BufLength returns the length of b as a Word (literal when b is concrete).
func BufLength(b Buf) Word {
	if cb, ok := b.(ConcreteBuf); ok {
		return LitU64(uint64(len(cb.Bytes)))
	}
	if bs, ok := ToBytes(b); ok {
		return LitU64(uint64(len(bs)))
	}
	return UnOp{Op: "buflen", X: Var{Name: "buf"}}
}

// ReadWord reads a 32-byte word at offset, zero-padding past the end.
func ReadWord(offset Word, b Buf) Word {
	off, offOk := AsLit(offset)
	bs, bufOk := ToBytes(b)
	if offOk && bufOk && off.IsUint64() {
		o := off.Uint64()
		var window [32]byte
		for i := uint64(0); i < 32; i++ {
			if o+i < uint64(len(bs)) {
				window[i] = bs[o+i]
			}
		}
		var z uint256.Int
		z.SetBytes(window[:])
		return Lit{Val: z}
	}
	return UnOp{Op: "readword@" + offsetTag(offset), X: bufVar(b)}
}

// ReadByte reads a single byte at offset, 0 past the end.
func ReadByte(offset Word, b Buf) Word {
	off, offOk := AsLit(offset)
	bs, bufOk := ToBytes(b)
	if offOk && bufOk && off.IsUint64() {
		o := off.Uint64()
		if o < uint64(len(bs)) {
			return LitU64(uint64(bs[o]))
		}
		return LitU64(0)
	}
	return UnOp{Op: "readbyte@" + offsetTag(offset), X: bufVar(b)}
}

// ReadBytes reads up to 32 bytes at offset, left-aligned and zero-padded,
// used by CODESIZE-relative PUSH-data and similar fixed-width reads.
func ReadBytes(n int, offset Word, b Buf) Word {
	off, offOk := AsLit(offset)
	bs, bufOk := ToBytes(b)
	if offOk && bufOk && off.IsUint64() {
		o := off.Uint64()
		window := make([]byte, 32)
		for i := 0; i < n && i < 32; i++ {
			if o+uint64(i) < uint64(len(bs)) {
				window[i] = bs[o+uint64(i)]
			}
		}
		var z uint256.Int
		z.SetBytes(window)
		return Lit{Val: z}
	}
	return UnOp{Op: "readbytes@" + offsetTag(offset), X: bufVar(b)}
}

// ConcPrefix returns the length of b and true when b is wholly concrete.
// For a buffer with any symbolic part it returns (0, false); the literal
// bytes before the first symbolic byte are not measured.
func ConcPrefix(b Buf) (int, bool) {
	bs, ok := ToBytes(b)
	if !ok {
		return 0, false
	}
	return len(bs), true
}

func offsetTag(w Word) string {
	if v, ok := AsLit(w); ok && v.IsUint64() {
		return itoa(v.Uint64())
	}
	return "sym"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func bufVar(b Buf) Word {
	if ab, ok := b.(AbstractBuf); ok {
		return Var{Name: ab.Name}
	}
	return Var{Name: "buf"}
}
