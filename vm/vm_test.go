package vm

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/hevm/core/types"
	"github.com/sbip-sg/hevm/expr"
)

var (
	testContract = types.Address{0x01}
	testCaller   = types.Address{0x02}
)

// newTestVM builds a VM running code against testContract, called by
// testCaller with an ample gas budget and no calldata.
func newTestVM(t *testing.T, code []byte, gas uint64) *VM {
	t.Helper()
	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(code)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      gas,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	return vm
}

// S1: PUSH1 5 PUSH1 10 ADD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN returns 15.
func TestScenarioAddAndReturn(t *testing.T) {
	code := []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 10,
		byte(ADD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := make([]byte, 32)
	want[31] = 15
	if !bytes.Equal(res.Output, want) {
		t.Errorf("output = %x, want %x", res.Output, want)
	}
}

// S2: a plain STOP with no stack activity succeeds with empty output.
func TestScenarioStop(t *testing.T) {
	code := []byte{byte(STOP)}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success", res.Outcome)
	}
	if len(res.Output) != 0 {
		t.Errorf("STOP output = %x, want empty", res.Output)
	}
}

// S3: REVERT preserves the revert reason and rolls back storage writes made
// earlier in the same top-level frame.
func TestScenarioRevertRollsBackStorage(t *testing.T) {
	code := []byte{
		byte(PUSH1), 1, // value
		byte(PUSH1), 0, // slot
		byte(SSTORE),
		byte(PUSH1), 0, // size
		byte(PUSH1), 0, // offset
		byte(REVERT),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeRevert {
		t.Fatalf("outcome = %v, want Revert", res.Outcome)
	}
	val, ok := expr.SLoad(addrToWord(testContract), expr.LitU64(0), vm.Env.Storage)
	if !ok || !expr.IsZero(val) {
		t.Errorf("slot 0 after revert = %v, want 0 (write must be undone)", val)
	}
}

// S4: an out-of-gas failure ends the transaction as a Failure with all gas
// burned.
func TestScenarioOutOfGasBurnsAllGas(t *testing.T) {
	code := []byte{byte(PUSH1), 1} // PUSH1 needs 2 bytes of gas-bearing code but only push itself costs gas
	vm := newTestVM(t, code, 1)    // not enough for even PUSH1's GasVeryLow
	res := vm.Run()
	if res.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %v, want Failure", res.Outcome)
	}
	if vm.State.Gas != 0 {
		t.Errorf("gas left after out-of-gas failure = %d, want 0", vm.State.Gas)
	}
}

// S5: JUMP/JUMPI with a literal condition branches without ever suspending.
func TestScenarioJumpiLiteralCondition(t *testing.T) {
	// PUSH1 1 (cond) PUSH1 dest JUMPI INVALID JUMPDEST PUSH1 7 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	code := []byte{
		byte(PUSH1), 1, // [0,1] cond=1
		byte(PUSH1), 0, // [2,3] placeholder for dest, patched below
		byte(JUMPI),    // [4]
		byte(INVALID),  // [5]
		byte(JUMPDEST), // [6]
		byte(PUSH1), 7, // [7,8]
		byte(PUSH1), 0, // [9,10]
		byte(MSTORE),   // [11]
		byte(PUSH1), 32, // [12,13]
		byte(PUSH1), 0, // [14,15]
		byte(RETURN), // [16]
	}
	code[3] = 6 // dest = JUMPDEST offset

	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := make([]byte, 32)
	want[31] = 7
	if !bytes.Equal(res.Output, want) {
		t.Errorf("output = %x, want %x", res.Output, want)
	}
}

// S6: jumping to a non-JUMPDEST byte is rejected.
func TestScenarioBadJumpDestination(t *testing.T) {
	code := []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 2, // not a JUMPDEST
		byte(JUMPI),
		byte(STOP),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %v, want Failure", res.Outcome)
	}
}

// S7: SSTORE of a fresh zero->nonzero slot persists across a subsequent
// SLOAD within the same frame.
func TestScenarioSstoreThenSload(t *testing.T) {
	code := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 3,
		byte(SSTORE),
		byte(PUSH1), 3,
		byte(SLOAD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := make([]byte, 32)
	want[31] = 42
	if !bytes.Equal(res.Output, want) {
		t.Errorf("output = %x, want %x", res.Output, want)
	}
}

func TestScenarioStackUnderflow(t *testing.T) {
	code := []byte{byte(ADD)}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %v, want Failure", res.Outcome)
	}
	if res.Err == nil || res.Err.Kind != "StackUnderrun" {
		t.Errorf("err = %v, want StackUnderrun", res.Err)
	}
}

// A plain CALL from testCaller into testContract, which itself CALLs a
// second contract and returns its output unchanged, exercises the
// pushCallFrame/finishReturn round trip across two nested frames.
func TestScenarioNestedCall(t *testing.T) {
	callee := types.Address{19: 0x13}

	calleeCode := []byte{
		byte(PUSH1), 99,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}

	// CALL pops gas first (top of stack), so bytecode pushes in the
	// reverse of (gas, addr, value, argsOffset, argsSize, retOffset, retSize).
	callerCode := []byte{
		byte(PUSH1), 32, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH1), callee[19], // addr
		byte(GAS),
		byte(CALL),
		byte(POP), // discard success flag
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}

	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(callerCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[callee] = NewContract(callee, RuntimeCode{Buf: expr.FromBytes(calleeCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      1_000_000,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}

	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := make([]byte, 32)
	want[31] = 99
	if !bytes.Equal(res.Output, want) {
		t.Errorf("output = %x, want %x", res.Output, want)
	}
}

// A CALL's target and caller stay resolvable after the call returns: the
// parent frame's PC must land past the CALL opcode, not back on it.
func TestScenarioCallAdvancesCallerPC(t *testing.T) {
	callee := types.Address{19: 0x14}
	calleeCode := []byte{byte(STOP)}
	callerCode := []byte{
		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH1), callee[19], // addr
		byte(GAS),
		byte(CALL),
		byte(POP),
		byte(STOP),
	}

	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(callerCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[callee] = NewContract(callee, RuntimeCode{Buf: expr.FromBytes(calleeCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      1_000_000,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v, stuck at a re-executed CALL if the caller's PC never advanced)", res.Outcome, res.Err)
	}
}

// SELFDESTRUCT transfers the full balance to the recipient and ends the
// frame with empty output; the transfer is visible immediately even though
// removal itself is deferred to end-of-transaction.
func TestScenarioSelfdestructTransfersBalance(t *testing.T) {
	recipient := types.Address{19: 0x05}
	code := []byte{
		byte(PUSH1), recipient[19],
		byte(SELFDESTRUCT),
	}
	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(code)}, uint256.NewInt(1000), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      100_000,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	recipientC := vm.Env.Contracts[recipient]
	if recipientC == nil || recipientC.Balance.Uint64() != 1000 {
		t.Errorf("recipient balance = %v, want 1000", recipientC)
	}
	if !vm.Tx.Substate.Selfdestructs.Contains(testContract) {
		t.Errorf("testContract should be scheduled for selfdestruct removal")
	}
}

// EIP-2929: the accessed-address set survives a reverted call even though
// that call's storage writes do not.
func TestScenarioAccessListSurvivesRevert(t *testing.T) {
	other := types.Address{19: 0x16}
	callee := types.Address{19: 0x15}
	calleeCode := []byte{
		byte(PUSH1), other[19],
		byte(BALANCE), // warms `other`
		byte(POP),
		byte(PUSH1), 1, // value
		byte(PUSH1), 0, // slot
		byte(SSTORE),
		byte(PUSH1), 0, // size
		byte(PUSH1), 0, // offset
		byte(REVERT),
	}
	code := []byte{
		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH1), callee[19], // addr
		byte(GAS),
		byte(CALL),
		byte(POP),
		byte(STOP),
	}
	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(code)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[callee] = NewContract(callee, RuntimeCode{Buf: expr.FromBytes(calleeCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      100_000,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	if !vm.Tx.Substate.AccessedAddresses.Contains(other) {
		t.Errorf("access list entry for %v should survive a revert", other)
	}
	val, ok := expr.SLoad(addrToWord(callee), expr.LitU64(0), vm.Env.Storage)
	if !ok || !expr.IsZero(val) {
		t.Errorf("slot 0 after revert = %v, want 0 (SSTORE must be undone)", val)
	}
}

// A CALL to the cheatcode address with a warp(uint256) selector runs inline
// and mutates vm.Block.Timestamp rather than pushing a frame.
func TestScenarioCheatcodeWarp(t *testing.T) {
	sel := selectorWarp
	code := []byte{
		byte(PUSH1 + 3), sel[0], sel[1], sel[2], sel[3], // PUSH4
		byte(PUSH1), 224,
		byte(SHL),
		byte(PUSH1), 0,
		byte(MSTORE),

		byte(PUSH1), 100, // new timestamp
		byte(PUSH1), 4,
		byte(MSTORE),

		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 36, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
	}
	code = append(code, byte(PUSH1+19)) // PUSH20
	code = append(code, cheatCodeAddress[:]...)
	code = append(code, byte(GAS), byte(CALL), byte(POP), byte(STOP))

	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	if vm.Block.Timestamp != 100 {
		t.Errorf("Block.Timestamp = %d, want 100", vm.Block.Timestamp)
	}
}

// A CALL into the identity precompile (0x04) runs inline without pushing a
// call frame and echoes its input back as output.
func TestScenarioIdentityPrecompile(t *testing.T) {
	identity := types.Address{19: 0x04}
	code := []byte{
		byte(PUSH1), 42,
		byte(PUSH1), 0,
		byte(MSTORE),

		byte(PUSH1), 32, // retSize
		byte(PUSH1), 32, // retOffset
		byte(PUSH1), 32, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH1), identity[19], // addr
		byte(GAS),
		byte(CALL),
		byte(POP),

		byte(PUSH1), 32,
		byte(PUSH1), 32,
		byte(RETURN),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := make([]byte, 32)
	want[31] = 42
	if !bytes.Equal(res.Output, want) {
		t.Errorf("output = %x, want %x (identity precompile should echo its input)", res.Output, want)
	}
}

// A literal KECCAK256 over a literal memory region records its preimage for
// later SMT-side keccak-injectivity assumptions.
func TestScenarioKeccakRecordsPreimage(t *testing.T) {
	code := []byte{
		byte(PUSH1), 32, // size
		byte(PUSH1), 0, // offset
		byte(KECCAK256),
		byte(POP),
		byte(STOP),
	}
	vm := newTestVM(t, code, 100_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	if len(vm.Env.Sha3Preimages) != 1 {
		t.Errorf("Sha3Preimages has %d entries, want 1", len(vm.Env.Sha3Preimages))
	}
}

func TestScenarioGasMonotonicity(t *testing.T) {
	code := []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 10,
		byte(ADD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	gasLimit := uint64(100_000)
	vm := newTestVM(t, code, gasLimit)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success", res.Outcome)
	}
	if vm.Burned == 0 {
		t.Errorf("Burned should be nonzero after executing several opcodes")
	}
	if vm.Burned > gasLimit {
		t.Errorf("Burned %d exceeds gas limit %d", vm.Burned, gasLimit)
	}
}

// S6: CREATE deploys init code that returns a tiny runtime body, and the
// pushed address matches the RLP(sender, nonce) derivation.
func TestScenarioCreateDeploysCode(t *testing.T) {
	// init code: MSTORE8 a STOP byte at offset 0, then RETURN 1 byte.
	initCode := []byte{
		byte(PUSH1), 0x00,
		byte(PUSH1), 0,
		byte(MSTORE8),
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	var word [32]byte
	copy(word[:], initCode)

	code := make([]byte, 0)
	code = append(code, byte(PUSH1+31)) // PUSH32
	code = append(code, word[:]...)
	code = append(code, byte(PUSH1), 0) // offset to MSTORE the init code at
	code = append(code, byte(MSTORE))
	code = append(code,
		byte(PUSH1), byte(len(initCode)), // size
		byte(PUSH1), 0, // offset
		byte(PUSH1), 0, // value
		byte(CREATE),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	)

	vm := newTestVM(t, code, 1_000_000)
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
	want := CreateAddress(testContract, 0)
	var got types.Address
	copy(got[:], res.Output[12:32])
	if got != want {
		t.Errorf("created address = %x, want %x", got, want)
	}
	deployed, ok := vm.Env.Contracts[want]
	if !ok {
		t.Fatalf("new contract %x not found in Env.Contracts", want)
	}
	if _, ok := deployed.Code.(RuntimeCode); !ok {
		t.Errorf("deployed contract's code should be RuntimeCode after a successful CREATE")
	}
}

// A CREATE/CREATE2 address collision pushes 0 and burns the full gas cap
// computed for the call (no childGas refund), unlike the balance-too-low,
// depth-exceeded, and nonce-overflow checks immediately above it in
// execCreate, which all push 0 but refund childGas.
func TestCreateCollisionBurnsFullGas(t *testing.T) {
	code := []byte{byte(STOP)}
	vm := newTestVM(t, code, 1_000_000)

	self := vm.Env.Contracts[testContract]
	predicted := CreateAddress(testContract, self.Nonce)
	vm.Env.Contracts[predicted] = NewContract(predicted, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1), 0, types.EmptyCodeHash, false)

	gasBefore := vm.State.Gas
	_ = vm.State.Stack.Push(expr.LitU64(0)) // size
	_ = vm.State.Stack.Push(expr.LitU64(0)) // offset
	_ = vm.State.Stack.Push(expr.LitU64(0)) // value
	totalCost, _ := CostOfCreate(gasBefore, 0)

	if err := execCreate(vm, nil); err != nil {
		t.Fatalf("execCreate: %v", err)
	}

	pushed, ok := expr.AsLit(vm.State.Stack.Pop())
	if !ok || !pushed.IsZero() {
		t.Errorf("collision should push 0, got %v (ok=%v)", pushed, ok)
	}
	if want := gasBefore - totalCost; vm.State.Gas != want {
		t.Errorf("gas after collision = %d, want %d (full CostOfCreate cap burned, no refund)", vm.State.Gas, want)
	}
}

// Nonce overflow is a local push-0 failure like balance-too-low and
// depth-exceeded, NOT a frame-ending error: it must refund childGas exactly
// like those checks do.
func TestCreateNonceOverflowPushesZeroAndRefunds(t *testing.T) {
	code := []byte{byte(STOP)}
	vm := newTestVM(t, code, 1_000_000)

	self := vm.Env.Contracts[testContract]
	self.Nonce = ^uint64(0)

	gasBefore := vm.State.Gas
	_ = vm.State.Stack.Push(expr.LitU64(0)) // size
	_ = vm.State.Stack.Push(expr.LitU64(0)) // offset
	_ = vm.State.Stack.Push(expr.LitU64(0)) // value
	totalCost, childGas := CostOfCreate(gasBefore, 0)
	fixed := totalCost - childGas

	if err := execCreate(vm, nil); err != nil {
		t.Fatalf("execCreate: %v", err)
	}

	pushed, ok := expr.AsLit(vm.State.Stack.Pop())
	if !ok || !pushed.IsZero() {
		t.Errorf("nonce overflow should push 0, got %v (ok=%v)", pushed, ok)
	}
	if vm.State.Gas != gasBefore-fixed {
		t.Errorf("gas after nonce overflow = %d, want %d (childGas refunded)", vm.State.Gas, gasBefore-fixed)
	}
}

// A zero-value CALLCODE is legal inside a STATICCALL (only a nonzero value
// transfer is forbidden); this mirrors execCall's existing KindCall check,
// now extended to KindCallCode.
func TestScenarioStaticZeroValueCallcodeSucceeds(t *testing.T) {
	callee := types.Address{19: 0x08}
	calleeCode := []byte{byte(STOP)}

	callerCode := []byte{
		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH1), callee[19], // addr
		byte(GAS),
		byte(CALLCODE),
		byte(POP),
		byte(STOP),
	}

	env := NewEnv(1)
	env.Contracts[testContract] = NewContract(testContract, RuntimeCode{Buf: expr.FromBytes(callerCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[callee] = NewContract(callee, RuntimeCode{Buf: expr.FromBytes(calleeCode)}, uint256.NewInt(0), 0, types.EmptyCodeHash, false)
	env.Contracts[testCaller] = NewContract(testCaller, RuntimeCode{Buf: expr.EmptyBuf()}, uint256.NewInt(1_000_000), 0, types.EmptyCodeHash, false)

	vm, err := NewVM(VMOpts{
		Contract: testContract,
		Caller:   testCaller,
		Origin:   testCaller,
		Calldata: expr.EmptyBuf(),
		Value:    uint256.NewInt(0),
		Gas:      1_000_000,
		GasPrice: uint256.NewInt(0),
		Block:    Block{Coinbase: types.Address{0x09}, GasLimit: 30_000_000},
	}, env)
	if err != nil {
		t.Fatalf("NewVM: %v", err)
	}

	vm.State.Static = true
	res := vm.Run()
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want Success (err=%v)", res.Outcome, res.Err)
	}
}
