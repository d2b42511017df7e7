package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Signer signs transaction signing messages with an ed25519 key
type Signer interface {
	// Sign returns the ed25519 signature over message
	Sign(message []byte) ([]byte, error)
	// PublicKey returns the public key used for signing
	PublicKey() ed25519.PublicKey
	// KeyAlias returns the key alias (if applicable)
	KeyAlias() string
}

// KeySigner holds an in-memory ed25519 private key
type KeySigner struct {
	privateKey ed25519.PrivateKey
	keyAlias   string
}

// NewKeySigner wraps an existing private key
func NewKeySigner(privateKey ed25519.PrivateKey, keyAlias string) (*KeySigner, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d bytes, got %d bytes",
			ed25519.PrivateKeySize, len(privateKey))
	}
	return &KeySigner{privateKey: privateKey, keyAlias: keyAlias}, nil
}

// NewKeySignerFromString parses a hex or base64 encoded key
func NewKeySignerFromString(keyData, keyAlias string) (*KeySigner, error) {
	privateKey, err := ParsePrivateKey(keyData)
	if err != nil {
		return nil, err
	}
	return &KeySigner{privateKey: privateKey, keyAlias: keyAlias}, nil
}

// NewFileKeySigner creates a signer that reads key from file
func NewFileKeySigner(keyPath, keyAlias string) (*KeySigner, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyPath, err)
	}

	privateKey, err := ParsePrivateKey(string(keyData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from %s: %w", keyPath, err)
	}

	return &KeySigner{privateKey: privateKey, keyAlias: keyAlias}, nil
}

// NewEnvKeySigner creates a signer that reads key from environment variable
func NewEnvKeySigner(envVar, keyAlias string) (*KeySigner, error) {
	keyData := os.Getenv(envVar)
	if keyData == "" {
		return nil, fmt.Errorf("environment variable %s is not set or empty", envVar)
	}

	privateKey, err := ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from %s: %w", envVar, err)
	}

	return &KeySigner{privateKey: privateKey, keyAlias: keyAlias}, nil
}

// NewDevKeySigner creates a signer with a fixed development key.
// In production, this should NEVER be used.
func NewDevKeySigner() *KeySigner {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i % 256)
	}

	return &KeySigner{
		privateKey: ed25519.NewKeyFromSeed(seed),
		keyAlias:   "dev-default",
	}
}

// Sign signs message with the private key
func (k *KeySigner) Sign(message []byte) ([]byte, error) {
	if k.privateKey == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ed25519.Sign(k.privateKey, message), nil
}

// PublicKey returns the public half of the key
func (k *KeySigner) PublicKey() ed25519.PublicKey {
	if k.privateKey == nil {
		return nil
	}
	return k.privateKey.Public().(ed25519.PublicKey)
}

// KeyAlias returns the key alias
func (k *KeySigner) KeyAlias() string {
	return k.keyAlias
}

// SignerConfig represents signer configuration
type SignerConfig struct {
	Type string `yaml:"type"` // "file" | "env" | "key" | "dev"
	Key  string `yaml:"key"`  // path, env name or raw key
}

// NewFromConfig creates a signer from configuration
func NewFromConfig(cfg *SignerConfig) (Signer, error) {
	if cfg == nil || cfg.Type == "" {
		return nil, fmt.Errorf("no signer configuration provided")
	}

	switch cfg.Type {
	case "file":
		if cfg.Key == "" {
			return nil, fmt.Errorf("file signer requires key path")
		}
		return NewFileKeySigner(cfg.Key, "file")

	case "env":
		if cfg.Key == "" {
			return nil, fmt.Errorf("env signer requires environment variable name")
		}
		return NewEnvKeySigner(cfg.Key, "env")

	case "key":
		if cfg.Key == "" {
			return nil, fmt.Errorf("key signer requires key material")
		}
		return NewKeySignerFromString(cfg.Key, "key")

	case "dev":
		if cfg.Key == "" {
			return NewDevKeySigner(), nil
		}
		return NewKeySignerFromString(cfg.Key, "dev")

	default:
		return nil, fmt.Errorf("unsupported signer type: %s", cfg.Type)
	}
}

// ParsePrivateKey parses a private key from hex or base64. Hex keys may carry
// a 0x prefix and the "ed25519-priv-" type prefix used by node tooling. Both
// 32-byte seeds and 64-byte expanded keys are accepted.
func ParsePrivateKey(keyData string) (ed25519.PrivateKey, error) {
	keyData = strings.TrimSpace(keyData)
	keyData = strings.TrimPrefix(keyData, "ed25519-priv-")

	// Try hex decoding first
	if decoded, err := hex.DecodeString(strings.TrimPrefix(keyData, "0x")); err == nil {
		if key, ok := keyFromBytes(decoded); ok {
			return key, nil
		}
	}

	// Try base64 decoding
	if decoded, err := base64.StdEncoding.DecodeString(keyData); err == nil {
		if key, ok := keyFromBytes(decoded); ok {
			return key, nil
		}
	}

	// Try base64 URL encoding
	if decoded, err := base64.URLEncoding.DecodeString(keyData); err == nil {
		if key, ok := keyFromBytes(decoded); ok {
			return key, nil
		}
	}

	return nil, fmt.Errorf("unable to parse private key: invalid format or length")
}

func keyFromBytes(decoded []byte) (ed25519.PrivateKey, bool) {
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), true
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), true
	default:
		return nil, false
	}
}

// GenerateEd25519 generates a new Ed25519 key pair and returns public and private keys as hex strings
func GenerateEd25519() (pubHex, privHex string, err error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate Ed25519 key pair: %w", err)
	}

	return hex.EncodeToString(publicKey), hex.EncodeToString(privateKey.Seed()), nil
}
