package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
	"github.com/sbip-sg/hevm/log"
)

var vmLog = log.Module("vm")

// Outcome tags the shape of a completed (non-suspended) VMResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRevert
	OutcomeFailure
)

// VMResult is the terminal (or suspended) state of a run. Exactly one of
// {Output, Err, Pending} is meaningful, selected by Outcome/IsSuspended.
type VMResult struct {
	Outcome     Outcome
	Output      []byte
	Err         *Err
	IsSuspended bool
	Pending     *PendingOp
}

// VMOpts is the input to NewVM, per spec.md §6.
type VMOpts struct {
	Contract    types.Address
	Caller      types.Address
	Origin      types.Address
	Calldata    expr.Buf
	Value       *uint256.Int
	Gas         uint64
	GasPrice    *uint256.Int
	PriorityFee *uint256.Int
	IsCreate    bool
	AccessList  []types.Address
	AllowFFI    bool
	ChainID     uint64
	Block       Block
}

// VM is the top-level interpreter state: one active frame stack executing
// within one transaction.
type VM struct {
	Result *VMResult

	State  *FrameState
	Frames []*Frame

	Env   *Env
	Block *Block
	Tx    *TxState

	Logs   []types.Log
	Traces *Trace
	Cache  *Cache

	Burned     uint64
	Iterations map[CodeLocation]int
	Constraints []Prop
	KeccakEqs   []Prop

	AllowFFI bool

	// Prank holds the msg.sender override installed by the prank/stopPrank
	// cheatcodes (supplemented beyond spec.md §4.G, see SPEC_FULL.md).
	Prank *prankState
}

// NewVM constructs a fresh VM ready to execute opts.Contract's code against
// opts.Calldata. The contract and any accounts referenced must already be
// registered in env.Contracts (by the driver, typically after resolving an
// initial PleaseFetchContract itself).
func NewVM(opts VMOpts, env *Env) (*VM, error) {
	sub := NewSubState()
	sub.WarmTxOrigin(opts.Origin, opts.Contract, opts.AccessList)
	sub.Touched.Add(opts.Origin)
	sub.Touched.Add(opts.Contract)

	tx := &TxState{
		GasPrice:    opts.GasPrice,
		TxGasLimit:  opts.Gas,
		PriorityFee: opts.PriorityFee,
		Origin:      opts.Origin,
		To:          opts.Contract,
		Value:       opts.Value,
		IsCreate:    opts.IsCreate,
		AccessList:  opts.AccessList,
		Substate:    sub,
		TxReversion: cloneContracts(env.Contracts),
	}

	contract, ok := env.Contracts[opts.Contract]
	if !ok {
		return nil, ErrBalanceTooLow
	}

	callerWord := addrToWord(opts.Caller)
	state := NewFrameState(opts.Contract, opts.Contract, contract.Code, opts.Calldata, wordFromUint(opts.Value), callerWord, opts.Gas, false)

	vm := &VM{
		State:      state,
		Frames:     nil,
		Env:        env,
		Block:      &opts.Block,
		Tx:         tx,
		Traces:     NewTrace(),
		Cache:      NewCache(),
		Iterations: map[CodeLocation]int{},
		AllowFFI:   opts.AllowFFI,
	}
	return vm, nil
}

func cloneContracts(m map[types.Address]*Contract) map[types.Address]*Contract {
	out := make(map[types.Address]*Contract, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func addrToWord(a types.Address) expr.Word {
	var b [32]byte
	copy(b[12:], a[:])
	return expr.LitBytes(b[:])
}

func wordFromUint(v *uint256.Int) expr.Word {
	if v == nil {
		return expr.LitU64(0)
	}
	b := v.Bytes32()
	return expr.LitBytes(b[:])
}

// Run drives Step until a terminal or suspended result is produced.
func (vm *VM) Run() *VMResult {
	for vm.Result == nil {
		vm.Step()
	}
	return vm.Result
}

// CurrentFrame returns the frame context of the executing activation, or
// nil at the top-level (pre-first-call) frame.
func (vm *VM) CurrentFrame() *Frame {
	if len(vm.Frames) == 0 {
		return nil
	}
	return vm.Frames[len(vm.Frames)-1]
}

// Contract returns the Contract object backing the current frame's target
// address.
func (vm *VM) Contract() *Contract { return vm.Env.Contracts[vm.State.Contract] }
