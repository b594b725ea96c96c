package vm

import (
	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

// Prop is a propositional fact accumulated during execution: a path
// condition (from a resolved branch) or a keccak-preimage equality.
type Prop struct {
	Kind string // "eq", "neq", "keccak-eq"
	A, B expr.Word
}

// QueryKind tags the four suspension request shapes of spec.md §4.H plus
// the re-emitted ChoosePath used when the SMT answer is Unknown.
type QueryKind int

const (
	QueryFetchContract QueryKind = iota
	QueryFetchSlot
	QueryAskSMT
	QueryDoFFI
	ChoosePath
)

// Query describes why the VM halted and what answer it is waiting for.
// Per the §9 design note, the continuation is NOT a closure: the actual
// "what to resume" information lives in VM.Result.Pending, a typed
// descriptor the step function consults on Resume.
type Query struct {
	Kind QueryKind

	Addr types.Address // QueryFetchContract / QueryFetchSlot
	Slot [32]byte       // QueryFetchSlot

	Cond           expr.Word // QueryAskSMT / ChoosePath
	PathConditions []Prop
	Loc            CodeLocation

	Argv []string // QueryDoFFI
}

// PendingOp is the typed "what were we doing" descriptor the step function
// consults when the driver resumes execution after answering a Query.
type PendingOp struct {
	Query Query
	Kind  string // "sload", "sstore", "jumpi", "ffi"

	// Free-form slots used by specific pending kinds; only the fields
	// relevant to Kind are populated.
	StackArgs []expr.Word
	PC        uint64
}

// Suspend halts the VM with q pending, recording how to resume once the
// driver answers.
func (vm *VM) Suspend(q Query, pending PendingOp) {
	pending.Query = q
	vm.Result = &VMResult{IsSuspended: true, Pending: &pending}
}

// ResolveFetchContract installs a fetched contract and clears the
// suspension so the next Step call resumes exactly where it left off.
func (vm *VM) ResolveFetchContract(c *Contract) {
	vm.Env.Contracts[c.Address] = c
	vm.Cache.FetchedContracts[c.Address] = c
	vm.Result = nil
}

// ResolveFetchSlot installs a fetched storage slot value and resumes the
// SLOAD/SSTORE that suspended waiting for it.
func (vm *VM) ResolveFetchSlot(addr types.Address, slot [32]byte, value [32]byte) {
	m, ok := vm.Cache.FetchedStorage[addr]
	if !ok {
		m = map[[32]byte][32]byte{}
		vm.Cache.FetchedStorage[addr] = m
	}
	m[slot] = value
	vm.Env.Storage = expr.SStore(litAddrWord(addr), expr.LitBytes(slot[:]), expr.LitBytes(value[:]), vm.Env.Storage)
	pending := vm.Result.Pending
	vm.Result = nil
	vm.resumePending(*pending, expr.LitBytes(value[:]))
}

// SMTAnswer is the driver's answer to a QueryAskSMT.
type SMTAnswer int

const (
	SMTTrue SMTAnswer = iota
	SMTFalse
	SMTUnknown
	SMTInconsistent
)

// ResolveSMT answers a branch query, recording the path condition and
// bumping the per-location iteration counter on a definite answer,
// re-emitting as a user-facing ChoosePath on Unknown, and failing the
// branch with DeadPath on Inconsistent.
func (vm *VM) ResolveSMT(answer SMTAnswer) {
	pending := vm.Result.Pending
	loc := pending.Query.Loc
	switch answer {
	case SMTTrue, SMTFalse:
		taken := answer == SMTTrue
		prop := Prop{Kind: "neq", A: pending.Query.Cond, B: expr.LitU64(0)}
		if !taken {
			prop = Prop{Kind: "eq", A: pending.Query.Cond, B: expr.LitU64(0)}
		}
		vm.Constraints = append(vm.Constraints, prop)
		vm.Iterations[loc]++
		vm.Cache.RecordPath(loc, vm.Iterations[loc], taken)
		vm.Result = nil
		vm.resumePending(*pending, boolToWord(taken))
	case SMTUnknown:
		vm.Result = &VMResult{IsSuspended: true, Pending: &PendingOp{
			Query: Query{Kind: ChoosePath, Cond: pending.Query.Cond, Loc: loc},
			Kind:  pending.Kind,
		}}
	case SMTInconsistent:
		vm.failFrame(ErrDeadPath)
	}
}

// ResolveChoice answers a re-emitted ChoosePath (the user picking a branch
// the solver could not decide).
func (vm *VM) ResolveChoice(taken bool) {
	pending := vm.Result.Pending
	loc := pending.Query.Loc
	vm.Iterations[loc]++
	vm.Cache.RecordPath(loc, vm.Iterations[loc], taken)
	vm.Result = nil
	vm.resumePending(*pending, boolToWord(taken))
}

// ResolveFFI supplies the stdout of an external process for a QueryDoFFI.
func (vm *VM) ResolveFFI(output []byte) {
	pending := vm.Result.Pending
	vm.Result = nil
	vm.resumePendingBytes(*pending, output)
}

func boolToWord(b bool) expr.Word {
	if b {
		return expr.LitU64(1)
	}
	return expr.LitU64(0)
}

func litAddrWord(a types.Address) expr.Word { return addrToWord(a) }

// resumePending dispatches a resolved query back into the opcode that
// suspended, based on the PendingOp's Kind tag.
func (vm *VM) resumePending(p PendingOp, answer expr.Word) {
	switch p.Kind {
	case "jumpi":
		if !expr.IsZero(answer) {
			dest, ok := expr.AsLit(p.StackArgs[0])
			if !ok || !dest.IsUint64() || !vm.Contract().ValidJumpdest(dest.Uint64()) {
				vm.failFrame(ErrBadJumpDestination)
				return
			}
			vm.State.PC = dest.Uint64()
		} else {
			vm.State.PC += 1
		}
	case "sload":
		slotLit, _ := expr.AsLit(p.StackArgs[0])
		slot := slotLit.Bytes32()
		finishSload(vm, vm.State.Contract, slot, answer)
	case "sstore":
		slotLit, _ := expr.AsLit(p.StackArgs[0])
		slot := slotLit.Bytes32()
		newVal := p.StackArgs[1]
		cold := !expr.IsZero(p.StackArgs[2])
		if err := finishSstore(vm, vm.State.Contract, slot, answer, newVal, cold); err != nil {
			vm.failFrame(err)
		}
	}
}

func (vm *VM) resumePendingBytes(p PendingOp, output []byte) {
	switch p.Kind {
	case "ffi":
		outOffsetLit, _ := expr.AsLit(p.StackArgs[0])
		outSizeLit, _ := expr.AsLit(p.StackArgs[1])
		encoded := abiEncodeBytes(output)
		if err := cheatSuccess(vm, encoded, outOffsetLit.Uint64(), outSizeLit.Uint64()); err != nil {
			vm.failFrame(err)
		}
	}
}

func (vm *VM) advancePC(pc uint64) { vm.State.PC = pc }

// forceConcreteWord returns the literal value of w, or halts the frame with
// UnexpectedSymbolicArg and returns ok=false.
func forceConcreteWord(vm *VM, w expr.Word, msg string) (v expr.Word, ok bool) {
	if lit, litOk := expr.AsLit(w); litOk {
		return expr.Lit{Val: lit}, true
	}
	vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, msg, w))
	return nil, false
}

// forceConcreteU64 is forceConcreteWord specialized to a uint64 (offsets,
// sizes, jump destinations).
func forceConcreteU64(vm *VM, w expr.Word, msg string) (uint64, bool) {
	lit, ok := expr.AsLit(w)
	if !ok || !lit.IsUint64() {
		vm.failFrame(ErrUnexpectedSymbolicArg(vm.State.PC, msg, w))
		return 0, false
	}
	return lit.Uint64(), true
}
