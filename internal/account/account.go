package account

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/sha3"

	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/types/move"
)

// ed25519Scheme is the scheme byte appended to a public key when deriving its authentication key
const ed25519Scheme = 0x00

// LocalAccount is a sending account: address, signing key and the next
// sequence number to use.
//
// The sequence counter is the single source of truth for the next sequence
// number. Callers sharing one account across goroutines must serialize their
// build-and-submit sequences themselves: the counter never hands out the same
// number twice, but the node only accepts them in order.
type LocalAccount struct {
	address move.Address
	signer  signer.Signer
	seq     atomic.Uint64
}

// Option customizes a LocalAccount
type Option func(*LocalAccount)

// WithAddress overrides the derived address, for accounts whose key has been rotated
func WithAddress(addr move.Address) Option {
	return func(a *LocalAccount) {
		a.address = addr
	}
}

// New creates an account around s starting at sequenceNumber
func New(s signer.Signer, sequenceNumber uint64, opts ...Option) (*LocalAccount, error) {
	if s == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}

	pub := s.PublicKey()
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(pub))
	}

	a := &LocalAccount{
		address: AuthenticationKey(pub),
		signer:  s,
	}
	a.seq.Store(sequenceNumber)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// FromPrivateKey creates an account from a hex or base64 encoded private key
func FromPrivateKey(key string, sequenceNumber uint64, opts ...Option) (*LocalAccount, error) {
	s, err := signer.NewKeySignerFromString(key, "account")
	if err != nil {
		return nil, fmt.Errorf("failed to load account key: %w", err)
	}
	return New(s, sequenceNumber, opts...)
}

// AuthenticationKey derives the authentication key of a single ed25519 key.
// A fresh account's address equals its authentication key.
func AuthenticationKey(pub ed25519.PublicKey) move.Address {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})

	var addr move.Address
	copy(addr[:], h.Sum(nil))
	return addr
}

// Address returns the account address
func (a *LocalAccount) Address() move.Address {
	return a.address
}

// PublicKey returns the account's public key
func (a *LocalAccount) PublicKey() ed25519.PublicKey {
	return a.signer.PublicKey()
}

// Sign signs message with the account key
func (a *LocalAccount) Sign(message []byte) ([]byte, error) {
	return a.signer.Sign(message)
}

// SequenceNumber returns the next sequence number without consuming it
func (a *LocalAccount) SequenceNumber() uint64 {
	return a.seq.Load()
}

// NextSequenceNumber returns the current sequence number and advances the counter by one
func (a *LocalAccount) NextSequenceNumber() uint64 {
	return a.seq.Add(1) - 1
}

// SetSequenceNumber overwrites the counter, typically with the on-chain value
func (a *LocalAccount) SetSequenceNumber(n uint64) {
	a.seq.Store(n)
}

// SequenceReader reads an account's on-chain sequence number
type SequenceReader interface {
	AccountSequenceNumber(ctx context.Context, addr move.Address) (uint64, error)
}

// Sync sets the counter to the account's on-chain sequence number and returns it
func (a *LocalAccount) Sync(ctx context.Context, r SequenceReader) (uint64, error) {
	if r == nil {
		return 0, fmt.Errorf("sequence reader cannot be nil")
	}

	n, err := r.AccountSequenceNumber(ctx, a.address)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence number for %s: %w", a.address, err)
	}

	a.SetSequenceNumber(n)
	return n, nil
}

// String returns the account without key material
func (a *LocalAccount) String() string {
	return fmt.Sprintf("Account{Address: %s, Seq: %d}", a.address, a.SequenceNumber())
}
