package vm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/sbip-sg/hevm/core/types"
)

func TestSelectorMatchesKnownSignatureHash(t *testing.T) {
	// keccak256("warp(uint256)")[:4] = 0xe5d6bf02 (well-known forge-std selector).
	want := [4]byte{0xe5, 0xd6, 0xbf, 0x02}
	if selectorWarp != want {
		t.Errorf("selectorWarp = %x, want %x", selectorWarp, want)
	}
}

func TestFixedNonceSignIsDeterministic(t *testing.T) {
	priv := big.NewInt(12345)
	var hash [32]byte
	hash[31] = 1
	v1, r1, s1 := fixedNonceSign(priv, hash)
	v2, r2, s2 := fixedNonceSign(priv, hash)
	if v1 != 28 || v2 != 28 {
		t.Errorf("v = %d,%d, want 28 (fixed per hevm's sign idiosyncrasy)", v1, v2)
	}
	if r1 != r2 || s1 != s2 {
		t.Errorf("fixedNonceSign is not deterministic across calls with identical inputs")
	}
}

func TestFixedNonceSignVariesWithHash(t *testing.T) {
	priv := big.NewInt(12345)
	var h1, h2 [32]byte
	h1[31] = 1
	h2[31] = 2
	_, r1, s1 := fixedNonceSign(priv, h1)
	_, r2, s2 := fixedNonceSign(priv, h2)
	if r1 == r2 && s1 == s2 {
		t.Errorf("signatures over different hashes should not collide")
	}
}

func TestPrivkeyToAddressNonZero(t *testing.T) {
	a := privkeyToAddress(big.NewInt(1))
	if a == (types.Address{}) {
		t.Errorf("privkeyToAddress(1) = zero address, want a real derived address")
	}
}

func TestAbiEncodeBytesShape(t *testing.T) {
	out := abiEncodeBytes([]byte{0xaa, 0xbb, 0xcc})
	if len(out) != 32+32 { // length word + one padded word
		t.Fatalf("len(out) = %d, want 64", len(out))
	}
	wantLen := make([]byte, 32)
	wantLen[31] = 3
	if !bytes.Equal(out[:32], wantLen) {
		t.Errorf("length word = %x, want %x", out[:32], wantLen)
	}
	wantData := make([]byte, 32)
	copy(wantData, []byte{0xaa, 0xbb, 0xcc})
	if !bytes.Equal(out[32:], wantData) {
		t.Errorf("data word = %x, want %x", out[32:], wantData)
	}
}

func TestAbiEncodeBytesEmpty(t *testing.T) {
	out := abiEncodeBytes(nil)
	if len(out) != 32 {
		t.Fatalf("len(out) = %d, want 32 (length word only, no data word)", len(out))
	}
	if !bytes.Equal(out, make([]byte, 32)) {
		t.Errorf("empty output should encode as a single zero length word")
	}
}

func TestAbiEncodeErrorHasSelectorAndMessage(t *testing.T) {
	out := abiEncodeError("nope")
	sel := selector("Error(string)")
	if !bytes.Equal(out[:4], sel[:]) {
		t.Errorf("missing Error(string) selector, got %x", out[:4])
	}
	wantLen := make([]byte, 32)
	wantLen[31] = 4
	if !bytes.Equal(out[4+32:4+64], wantLen) {
		t.Errorf("message length word = %x, want %x", out[4+32:4+64], wantLen)
	}
	if !bytes.Contains(out, []byte("nope")) {
		t.Errorf("encoded error should contain the message bytes")
	}
}

func TestWord32AtPastEndIsZero(t *testing.T) {
	v := word32At([]byte{1, 2, 3}, 0)
	if v.Sign() != 0 {
		t.Errorf("word32At with too-short input = %v, want 0", v)
	}
}

func TestAddrAtExtractsLow20Bytes(t *testing.T) {
	body := make([]byte, 32)
	body[31] = 0x42
	a := addrAt(body, 0)
	want := types.Address{19: 0x42}
	if a != want {
		t.Errorf("addrAt = %x, want %x", a, want)
	}
}
