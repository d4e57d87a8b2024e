package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix distinguishes the human-readable bech32 prefix used for
// engine accounts from the prefix used for keeper/operator accounts.
type AddressPrefix string

const (
	// TraderPrefix marks addresses belonging to traders and liquidity
	// providers.
	TraderPrefix AddressPrefix = "perp"
	// KeeperPrefix marks addresses belonging to whitelisted keepers and
	// funding accounts.
	KeeperPrefix AddressPrefix = "perpkpr"
)

// Address is a 20-byte account identifier tagged with a human-readable
// prefix. The zero value is not a valid address; use NewAddress or
// MustNewAddress to construct one.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress constructs an Address from exactly 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("crypto: address must be 20 bytes, got %d", len(b))
	}
	cloned := append([]byte(nil), b...)
	return Address{prefix: prefix, bytes: cloned}, nil
}

// MustNewAddress constructs an Address and panics on invalid input. Reserved
// for call sites operating on already-validated data (tests, constants).
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsZero reports whether the address has no backing bytes (the uninitialised
// zero value) or only zero bytes, used to detect "address not configured"
// across the engine.
func (a Address) IsZero() bool {
	if len(a.bytes) == 0 {
		return true
	}
	for _, b := range a.bytes {
		if b != 0 {
			return false
		}
	}
	return true
}

// String renders the address using bech32 with the address's prefix.
func (a Address) String() string {
	if len(a.bytes) == 0 {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a defensive copy of the address's raw bytes.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the address's human-readable prefix.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Key returns a comparable string suitable for use as a map key.
func (a Address) Key() string {
	return string(a.prefix) + ":" + string(a.bytes)
}

// Equal reports whether two addresses identify the same account.
func (a Address) Equal(other Address) bool {
	return a.Key() == other.Key()
}

// DecodeAddress parses a bech32-encoded address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// PrivateKey wraps an ECDSA secp256k1 private key used to sign the approval
// message required the first time a trader submits an order (see
// OrderBook.Submit's approval gate).
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps the corresponding ECDSA public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a fresh secp256k1 key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw private key bytes.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// PubKey derives the public key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the trader-prefixed account address for this key.
func (k *PublicKey) Address() Address {
	addrBytes := ethcrypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustNewAddress(TraderPrefix, addrBytes)
}

// PrivateKeyFromBytes reconstructs a private key from its raw bytes.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// HashApprovalMessage returns the keccak256 digest of msg, the hash traders
// sign once to join approved_accounts before their first order submission.
func HashApprovalMessage(msg []byte) []byte {
	return ethcrypto.Keccak256(msg)
}

// RecoverApprovalSigner recovers the address that produced sig over hash,
// used by OrderBook.Submit to validate the one-time approval signature
// before adding the sender to the approved-accounts set.
func RecoverApprovalSigner(hash, sig []byte) (Address, error) {
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return (&PublicKey{pub}).Address(), nil
}
