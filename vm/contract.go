package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// ContractCode is either the init code of a creation frame (a concrete
// prefix plus a possibly-symbolic tail, since the constructor arguments
// appended after compiled bytecode may be unconstrained) or the runtime
// code installed after a successful creation.
type ContractCode interface{ isContractCode() }

// InitCode is the code running during a CREATE/CREATE2 frame.
type InitCode struct {
	ConcretePrefix []byte
	SymbolicTail   expr.Buf
}

func (InitCode) isContractCode() {}

// RuntimeCode is the code of an already-deployed contract. Buf is usually a
// ConcreteBuf but may carry symbolic bytes for an externally-fetched
// contract whose bytecode was only partially disclosed.
type RuntimeCode struct{ Buf expr.Buf }

func (RuntimeCode) isContractCode() {}

// CodeOp is one decoded instruction at a byte offset.
type CodeOp struct {
	Offset uint64
	Op     OpCode
}

// Contract is one address in the VM's working set: its code, balance,
// nonce, and the cached analyses (op-index map, JUMPDEST set) derived from
// its code once.
type Contract struct {
	Address  types.Address
	Code     ContractCode
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash types.Hash

	// External is true iff this contract was installed via a
	// PleaseFetchContract suspension rather than being created locally in
	// this transaction; it affects how symbolic storage reads are treated
	// (an external contract's unfetched slots are an AbstractStore, a
	// locally created contract's unwritten slots are simply zero).
	External bool

	opIxMap   map[uint64]int
	codeOps   []CodeOp
	jumpdests map[uint64]bool
	analyzed  bool
}

// NewContract builds a Contract with freshly-analyzed code.
func NewContract(addr types.Address, code ContractCode, balance *uint256.Int, nonce uint64, codeHash types.Hash, external bool) *Contract {
	c := &Contract{
		Address:  addr,
		Code:     code,
		Balance:  balance,
		Nonce:    nonce,
		CodeHash: codeHash,
		External: external,
	}
	return c
}

// codeBytes returns the fully-concrete code bytes, or false if any part of
// the code is symbolic.
func (c *Contract) codeBytes() ([]byte, bool) {
	switch code := c.Code.(type) {
	case RuntimeCode:
		return expr.ToBytes(code.Buf)
	case InitCode:
		tail, ok := expr.ToBytes(code.SymbolicTail)
		if !ok {
			return nil, false
		}
		out := make([]byte, 0, len(code.ConcretePrefix)+len(tail))
		out = append(out, code.ConcretePrefix...)
		out = append(out, tail...)
		return out, true
	default:
		return nil, false
	}
}

// ConcPrefixLen returns the length of the contract's concrete code prefix:
// the whole ConcretePrefix of init code, or the full length of runtime code
// that is wholly concrete (0 when any runtime code byte is symbolic). It is
// used to decide how far GetOp/analysis can proceed
// without a symbolic-byte suspension.
func (c *Contract) ConcPrefixLen() int {
	switch code := c.Code.(type) {
	case RuntimeCode:
		n, _ := expr.ConcPrefix(code.Buf)
		return n
	case InitCode:
		return len(code.ConcretePrefix)
	default:
		return 0
	}
}

// CodeLen returns the total length of the contract's code as a Word
// (literal when the code is fully concrete).
func (c *Contract) CodeLen() expr.Word {
	switch code := c.Code.(type) {
	case RuntimeCode:
		return expr.BufLength(code.Buf)
	case InitCode:
		total := expr.BufLength(code.SymbolicTail)
		return expr.Add(expr.LitU64(uint64(len(code.ConcretePrefix))), total)
	default:
		return expr.LitU64(0)
	}
}

// GetOp returns the opcode byte at position n, or STOP past the end /
// inside a symbolic region (callers needing certainty should check
// ConcPrefixLen first).
func (c *Contract) GetOp(n uint64) OpCode {
	bs, ok := c.codeBytes()
	if !ok {
		if n < uint64(c.ConcPrefixLen()) {
			if ic, isInit := c.Code.(InitCode); isInit {
				return OpCode(ic.ConcretePrefix[n])
			}
		}
		return STOP
	}
	if n < uint64(len(bs)) {
		return OpCode(bs[n])
	}
	return STOP
}

// UseGas attempts to consume gas from a frame's remaining gas; the caller
// (FrameState) owns the actual counter, this helper only centralizes the
// comparison used throughout the step function.
func UseGas(have, want uint64) (remaining uint64, ok bool) {
	if have < want {
		return have, false
	}
	return have - want, true
}

// ensureAnalyzed lazily builds the op-index map and JUMPDEST set from the
// contract's concrete code prefix.
func (c *Contract) ensureAnalyzed() {
	if c.analyzed {
		return
	}
	c.analyzed = true
	c.jumpdests = make(map[uint64]bool)
	c.opIxMap = make(map[uint64]int)

	var bs []byte
	switch code := c.Code.(type) {
	case RuntimeCode:
		bs, _ = expr.ToBytes(code.Buf)
	case InitCode:
		bs = code.ConcretePrefix
	}
	ix := 0
	for i := uint64(0); i < uint64(len(bs)); {
		op := OpCode(bs[i])
		c.opIxMap[i] = ix
		c.codeOps = append(c.codeOps, CodeOp{Offset: i, Op: op})
		ix++
		if op == JUMPDEST {
			c.jumpdests[i] = true
		}
		i += OpSize(op)
	}
}

// ValidJumpdest reports whether dest is a JUMPDEST instruction (not a byte
// 0x5b occurring inside PUSH data).
func (c *Contract) ValidJumpdest(dest uint64) bool {
	c.ensureAnalyzed()
	return c.jumpdests[dest]
}

// IsEmpty reports whether c is the EIP-161 "empty account": zero nonce,
// zero balance, no code.
func (c *Contract) IsEmpty() bool {
	if c.Nonce != 0 || !c.Balance.IsZero() {
		return false
	}
	bs, ok := c.codeBytes()
	return ok && len(bs) == 0
}

// Clone returns a deep-enough copy for frame reversion snapshots: Code is
// immutable once built, so only Balance/Nonce need independent storage.
func (c *Contract) Clone() *Contract {
	cp := *c
	cp.Balance = new(uint256.Int).Set(c.Balance)
	return &cp
}
