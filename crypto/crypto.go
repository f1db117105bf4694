// Package crypto bundles the hashing, signing and address primitives
// used by the ledger core.
package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/ripemd160"

	"github.com/powlabs/gochain/errors"
)

// addressVersion is the version byte prepended to the public key hash
// before base58check encoding.
const addressVersion = 0x00

// Sha256 hashes msg with SHA-256.
func Sha256(msg []byte) []byte {
	h := sha256.New()
	h.Write(msg)
	return h.Sum(nil)
}

// DoubleSha256 hashes msg twice with SHA-256. Block header hashes use
// the double hash.
func DoubleSha256(msg []byte) []byte {
	return Sha256(Sha256(msg))
}

// HashToString encodes a raw hash as a lowercase hex string.
func HashToString(hash []byte) string {
	return hex.EncodeToString(hash)
}

// StringToHash decodes a hex string back into raw hash bytes.
func StringToHash(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidTransaction, err, "malformed hash %q", s)
	}
	return b, nil
}

// KeyPair wraps a secp256k1 private key together with its serialized
// compressed public key.
type KeyPair struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  []byte
}

// NewKeyPair generates a fresh secp256k1 key pair.
func NewKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "generate key pair")
	}
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// KeyPairFromPrivateKey reconstructs a key pair from 32 raw private key bytes.
func KeyPairFromPrivateKey(privBytes []byte) (*KeyPair, error) {
	if len(privBytes) != 32 {
		return nil, errors.New(errors.KindUnknown, "private key must be 32 bytes, got %d", len(privBytes))
	}
	priv := secp256k1.PrivKeyFromBytes(privBytes)
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// Sign signs the SHA-256 digest of msg and returns a DER encoded signature.
func (kp *KeyPair) Sign(msg []byte) []byte {
	digest := Sha256(msg)
	return secpecdsa.Sign(kp.PrivateKey, digest).Serialize()
}

// Address derives the base58check address of this key pair's public key.
func (kp *KeyPair) Address() string {
	return PubKeyToAddress(kp.PublicKey)
}

// VerifySignature reports whether sig is a valid signature of msg's
// SHA-256 digest under the given compressed public key.
func VerifySignature(pubKey, msg, sig []byte) bool {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsed, err := secpecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(Sha256(msg), pub)
}

// PubKeyToAddress derives a base58check address from a serialized
// public key: sha256, ripemd160, version byte, 4-byte checksum.
func PubKeyToAddress(pubKey []byte) string {
	shaDigest := Sha256(pubKey)
	ripemd := ripemd160.New()
	ripemd.Write(shaDigest)
	pubKeyHash := ripemd.Sum(nil)

	versioned := make([]byte, 0, 25)
	versioned = append(versioned, addressVersion)
	versioned = append(versioned, pubKeyHash...)

	checksum := DoubleSha256(versioned)[:4]
	return base58.Encode(append(versioned, checksum...))
}

// ValidateAddress checks the base58check checksum of an address.
func ValidateAddress(address string) bool {
	decoded := base58.Decode(address)
	if len(decoded) != 25 {
		return false
	}
	payload, checksum := decoded[:21], decoded[21:]
	expected := DoubleSha256(payload)[:4]
	for i := range checksum {
		if checksum[i] != expected[i] {
			return false
		}
	}
	return true
}
