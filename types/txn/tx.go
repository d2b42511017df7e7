package txn

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/fardream/go-bcs/bcs"
	"golang.org/x/crypto/sha3"

	"github.com/opendlt/movecall/types/move"
)

// ChainID distinguishes networks and prevents cross-network replay
type ChainID uint8

// Domain separators prepended (as sha3-256 digests) to signed and hashed data
const (
	rawTransactionSalt = "APTOS::RawTransaction"
	transactionSalt    = "APTOS::Transaction"
)

// userTransactionVariant is the variant index of a user transaction in the node's transaction enum
const userTransactionVariant = 0

// RawTransaction is the unsigned transaction. Field order is the BCS wire order
// and must not be changed.
type RawTransaction struct {
	Sender                  move.Address
	SequenceNumber          uint64
	Payload                 move.TransactionPayload
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 ChainID
}

// Bytes returns the canonical BCS encoding of the raw transaction
func (r *RawTransaction) Bytes() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("raw transaction cannot be nil")
	}
	data, err := bcs.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw transaction: %w", err)
	}
	return data, nil
}

// SigningMessage returns the bytes the sender signs: the salt digest followed
// by the BCS encoding of the raw transaction.
func (r *RawTransaction) SigningMessage() ([]byte, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return append(saltDigest(rawTransactionSalt), data...), nil
}

// Validate checks that every required field is populated
func (r *RawTransaction) Validate() error {
	if r.Payload.EntryFunction == nil {
		return fmt.Errorf("payload must be an entry function")
	}
	if r.MaxGasAmount == 0 {
		return fmt.Errorf("max gas amount must be positive")
	}
	if r.GasUnitPrice == 0 {
		return fmt.Errorf("gas unit price must be positive")
	}
	if r.ExpirationTimestampSecs == 0 {
		return fmt.Errorf("expiration timestamp must be set")
	}
	if r.ChainID == 0 {
		return fmt.Errorf("chain id must be set")
	}
	return nil
}

// Ed25519Authenticator carries a single ed25519 public key and signature
type Ed25519Authenticator struct {
	PublicKey []byte
	Signature []byte
}

// TransactionAuthenticator is the BCS enum of authentication schemes. Only
// the single-key ed25519 scheme (variant 0) is supported.
type TransactionAuthenticator struct {
	Ed25519 *Ed25519Authenticator
}

// IsBcsEnum marks TransactionAuthenticator as a BCS enum
func (TransactionAuthenticator) IsBcsEnum() {}

// SignedTransaction is a raw transaction plus the sender's authenticator
type SignedTransaction struct {
	Raw           RawTransaction
	Authenticator TransactionAuthenticator
}

// MessageSigner produces ed25519 signatures
type MessageSigner interface {
	PublicKey() ed25519.PublicKey
	Sign(message []byte) ([]byte, error)
}

// Sign signs raw with signer and returns the signed transaction
func Sign(raw *RawTransaction, signer MessageSigner) (*SignedTransaction, error) {
	if raw == nil {
		return nil, &SignatureError{Err: fmt.Errorf("raw transaction cannot be nil")}
	}
	if signer == nil {
		return nil, &SignatureError{Err: fmt.Errorf("signer cannot be nil")}
	}

	msg, err := raw.SigningMessage()
	if err != nil {
		return nil, &SignatureError{Err: err}
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, &SignatureError{Err: fmt.Errorf("failed to sign transaction: %w", err)}
	}

	pub := signer.PublicKey()
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return nil, &SignatureError{Err: fmt.Errorf("unexpected key or signature length: %d/%d", len(pub), len(sig))}
	}

	return &SignedTransaction{
		Raw: *raw,
		Authenticator: TransactionAuthenticator{
			Ed25519: &Ed25519Authenticator{
				PublicKey: append([]byte(nil), pub...),
				Signature: sig,
			},
		},
	}, nil
}

// Bytes returns the BCS encoding submitted to the node
func (s *SignedTransaction) Bytes() ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("signed transaction cannot be nil")
	}
	data, err := bcs.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signed transaction: %w", err)
	}
	return data, nil
}

// Decode parses a BCS encoded signed transaction
func Decode(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	n, err := bcs.Unmarshal(data, &tx)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed transaction: %w", err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("trailing bytes after signed transaction: %d of %d consumed", n, len(data))
	}
	return &tx, nil
}

// Verify checks the authenticator signature against the raw transaction
func (s *SignedTransaction) Verify() error {
	auth := s.Authenticator.Ed25519
	if auth == nil {
		return &SignatureError{Err: fmt.Errorf("unsupported authenticator")}
	}
	if len(auth.PublicKey) != ed25519.PublicKeySize {
		return &SignatureError{Err: fmt.Errorf("invalid public key length %d", len(auth.PublicKey))}
	}

	msg, err := s.Raw.SigningMessage()
	if err != nil {
		return &SignatureError{Err: err}
	}

	if !ed25519.Verify(ed25519.PublicKey(auth.PublicKey), msg, auth.Signature) {
		return &SignatureError{Err: fmt.Errorf("signature does not verify")}
	}
	return nil
}

// Hash returns the transaction hash the node indexes the transaction by
func (s *SignedTransaction) Hash() ([32]byte, error) {
	data, err := s.Bytes()
	if err != nil {
		return [32]byte{}, err
	}

	h := sha3.New256()
	h.Write(saltDigest(transactionSalt))
	h.Write([]byte{userTransactionVariant})
	h.Write(data)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// HashHex returns the 0x-prefixed hex transaction hash
func (s *SignedTransaction) HashHex() (string, error) {
	hash, err := s.Hash()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hash[:]), nil
}

// String returns a human-readable representation of the transaction
func (s *SignedTransaction) String() string {
	hash, err := s.HashHex()
	if err != nil {
		hash = "<unhashable>"
	}
	return fmt.Sprintf("Tx{Hash: %s, Sender: %s, Seq: %d, Payload: %s, Expires: %d, Chain: %d}",
		hash, s.Raw.Sender, s.Raw.SequenceNumber, s.Raw.Payload.String(), s.Raw.ExpirationTimestampSecs, s.Raw.ChainID)
}

func saltDigest(salt string) []byte {
	sum := sha3.Sum256([]byte(salt))
	return sum[:]
}

// SignatureError reports a local key or signing failure
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error: %v", e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}
