// Package ethkey derives ledger account addresses from secp256k1 keys and
// verifies personal-message signatures in the Ethereum format.
package ethkey

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	// KeyHexLen is the number of hex digits in a 32-byte key or hash.
	KeyHexLen = 64
	// AddressHexLen is the number of hex digits in a 20-byte address.
	AddressHexLen = 40

	signatureLen = 65
)

var ErrInvalidPrivateKey = errors.New("invalid private key")

// Keccak256 returns the legacy Keccak-256 digest of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// ParsePrivateKey decodes a 0x-prefixed (or bare) 32-byte hex private key.
func ParsePrivateKey(hexKey string) (*secp256k1.PrivateKey, error) {
	raw, ok := decodeFixedHex(hexKey, KeyHexLen)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(raw); overflow || scalar.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}

// GenerateKey returns a fresh private key as 0x-prefixed hex.
func GenerateKey() (string, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "0x" + hex.EncodeToString(priv.Serialize()), nil
}

// AddressFromPrivateKey derives the checksummed account address for hexKey.
func AddressFromPrivateKey(hexKey string) (string, error) {
	priv, err := ParsePrivateKey(hexKey)
	if err != nil {
		return "", err
	}
	return PubkeyToAddress(priv.PubKey()), nil
}

// PubkeyToAddress hashes the uncompressed public key and keeps the last 20 bytes.
func PubkeyToAddress(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	digest := Keccak256(uncompressed[1:])
	return ChecksumAddress("0x" + hex.EncodeToString(digest[12:]))
}

// ChecksumAddress applies mixed-case checksum encoding to an address. Inputs
// that are not addresses are returned unchanged.
func ChecksumAddress(address string) string {
	if !IsAddress(address) {
		return address
	}
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))
	digest := hex.EncodeToString(Keccak256([]byte(lower)))

	out := make([]byte, 0, AddressHexLen+2)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return IsAddress(a) && IsAddress(b) && strings.EqualFold(a, b)
}

// IsAddress reports whether s is 0x followed by 40 hex digits.
func IsAddress(s string) bool {
	_, ok := decodeFixedHex(s, AddressHexLen)
	return ok && hasPrefix(s)
}

// IsZeroAddress reports whether s is the all-zero address.
func IsZeroAddress(s string) bool {
	raw, ok := decodeFixedHex(s, AddressHexLen)
	return ok && isZero(raw)
}

// IsHash reports whether s is 0x followed by 64 hex digits and not all zero.
func IsHash(s string) bool {
	raw, ok := decodeFixedHex(s, KeyHexLen)
	return ok && hasPrefix(s) && !isZero(raw)
}

// HashMessage returns the digest signed for a personal message:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func HashMessage(message []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	return Keccak256([]byte(prefix), message)
}

// SignMessage signs message with hexKey and returns the 65-byte [R || S || V]
// signature as 0x-prefixed hex with V in {27, 28}.
func SignMessage(hexKey string, message string) (string, error) {
	priv, err := ParsePrivateKey(hexKey)
	if err != nil {
		return "", err
	}
	compact := ecdsa.SignCompact(priv, HashMessage([]byte(message)), false)

	sig := make([]byte, signatureLen)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAddress returns the address that produced signature over message.
func RecoverAddress(message string, signature string) (string, error) {
	sig, ok := decodeFixedHex(signature, signatureLen*2)
	if !ok {
		return "", errors.New("malformed signature")
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", fmt.Errorf("invalid recovery id %d", sig[64])
	}

	compact := make([]byte, signatureLen)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashMessage([]byte(message)))
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return PubkeyToAddress(pub), nil
}

// VerifySignature reports whether signature over message was produced by the
// account at address. Any malformed input yields false.
func VerifySignature(address, message, signature string) bool {
	if !IsAddress(address) {
		return false
	}
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, address)
}

func hasPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

func decodeFixedHex(s string, hexLen int) ([]byte, bool) {
	if hasPrefix(s) {
		s = s[2:]
	}
	if len(s) != hexLen {
		return nil, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Verifier adapts VerifySignature to the signature-verifier collaborator
// interface used by the certificate service.
type Verifier struct{}

func (Verifier) VerifySignature(address, message, signature string) bool {
	return VerifySignature(address, message, signature)
}
