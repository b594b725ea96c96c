package vm

import (
	"golang.org/x/crypto/sha3"

	"github.com/sbip-sg/hevm/core/types"
)

// Keccak256 hashes data with the Ethereum/EVM variant of Keccak (NOT
// standard SHA-3), matching KECCAK256 and every address-derivation formula
// in this package.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// cheatCodeAddress is the low 160 bits of keccak256("hevm cheat code").
var cheatCodeAddress = func() types.Address {
	h := Keccak256([]byte("hevm cheat code"))
	var a types.Address
	copy(a[:], h[12:])
	return a
}()

// rlpAddressNonce encodes (sender, nonce) the way CREATE's address formula
// needs: keccak256(rlp([sender, nonce]))[12:]. Full general RLP is out of
// scope; only the two-element (20-byte string, small uint) list CREATE
// needs is implemented.
func rlpAddressNonce(sender types.Address, nonce uint64) []byte {
	senderItem := rlpBytes(sender[:])
	nonceItem := rlpUint(nonce)
	payload := append(append([]byte{}, senderItem...), nonceItem...)
	return append(rlpListHeader(len(payload)), payload...)
}

func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(rlpStringHeader(len(b)), b...)
}

func rlpUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	var buf [8]byte
	n := 8
	for v > 0 {
		n--
		buf[n] = byte(v)
		v >>= 8
	}
	return rlpBytes(buf[n:])
}

func rlpStringHeader(n int) []byte {
	if n <= 55 {
		return []byte{byte(0x80 + n)}
	}
	lenBytes := bigEndianMinimal(uint64(n))
	return append([]byte{byte(0xb7 + len(lenBytes))}, lenBytes...)
}

func rlpListHeader(n int) []byte {
	if n <= 55 {
		return []byte{byte(0xc0 + n)}
	}
	lenBytes := bigEndianMinimal(uint64(n))
	return append([]byte{byte(0xf7 + len(lenBytes))}, lenBytes...)
}

func bigEndianMinimal(v uint64) []byte {
	var buf [8]byte
	n := 8
	for v > 0 {
		n--
		buf[n] = byte(v)
		v >>= 8
	}
	if n == 8 {
		return []byte{0}
	}
	return buf[n:]
}

// CreateAddress derives the CREATE target address.
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	h := Keccak256(rlpAddressNonce(sender, nonce))
	var a types.Address
	copy(a[:], h[12:])
	return a
}

// Create2Address derives the CREATE2 target address.
func Create2Address(sender types.Address, salt [32]byte, initCodeHash [32]byte) types.Address {
	h := Keccak256([]byte{0xff}, sender[:], salt[:], initCodeHash[:])
	var a types.Address
	copy(a[:], h[12:])
	return a
}
