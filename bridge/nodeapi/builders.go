package nodeapi

import (
	"fmt"
	"time"

	"github.com/opendlt/movecall/internal/logz"
	"github.com/opendlt/movecall/internal/metrics"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

// Sender is an account able to sign transactions and hand out sequence numbers
type Sender interface {
	txn.MessageSigner
	Address() move.Address
	NextSequenceNumber() uint64
	SequenceNumber() uint64
}

// BuilderConfig holds the static transaction parameters
type BuilderConfig struct {
	// How far in the future transactions expire
	ExpirationWindow time.Duration
	// Gas limit for every transaction
	MaxGasAmount uint64
	// Price per gas unit in octas
	GasUnitPrice uint64
}

// DefaultBuilderConfig returns the default transaction parameters
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		ExpirationWindow: 60 * time.Second,
		MaxGasAmount:     200000,
		GasUnitPrice:     100,
	}
}

// Builder assembles and signs transactions
type Builder struct {
	config  *BuilderConfig
	clock   func() time.Time
	logger  *logz.Logger
	metrics *metrics.Metrics
}

// BuilderOption customizes a Builder
type BuilderOption func(*Builder)

// WithClock sets the clock used to compute expiration times
func WithClock(clock func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.clock = clock
	}
}

// WithBuilderLogger sets the builder logger
func WithBuilderLogger(logger *logz.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithBuilderMetrics sets the metrics the builder reports to
func WithBuilderMetrics(m *metrics.Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// NewBuilder creates a transaction builder
func NewBuilder(config *BuilderConfig, opts ...BuilderOption) (*Builder, error) {
	if config == nil {
		config = DefaultBuilderConfig()
	}

	if config.ExpirationWindow < time.Second {
		return nil, fmt.Errorf("expiration window must be at least 1s, got %s", config.ExpirationWindow)
	}
	if config.MaxGasAmount == 0 {
		return nil, fmt.Errorf("max gas amount must be positive")
	}
	if config.GasUnitPrice == 0 {
		return nil, fmt.Errorf("gas unit price must be positive")
	}

	b := &Builder{
		config: config,
		clock:  time.Now,
		logger: logz.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build assembles a transaction for payload from sender and signs it.
//
// The sender's sequence number is consumed exactly once, after all inputs are
// checked and before signing. It is not handed back if signing fails: a
// rebuilt transaction always gets a new, higher sequence number.
func (b *Builder) Build(payload *move.TransactionPayload, sender Sender, chainID txn.ChainID) (*txn.SignedTransaction, error) {
	if payload == nil || payload.EntryFunction == nil {
		return nil, fmt.Errorf("payload must be an entry function")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("chain id must be set")
	}

	expiration := b.clock().Add(b.config.ExpirationWindow).Unix()

	raw := &txn.RawTransaction{
		Sender:                  sender.Address(),
		SequenceNumber:          sender.NextSequenceNumber(),
		Payload:                 *payload,
		MaxGasAmount:            b.config.MaxGasAmount,
		GasUnitPrice:            b.config.GasUnitPrice,
		ExpirationTimestampSecs: uint64(expiration),
		ChainID:                 chainID,
	}

	tx, err := txn.Sign(raw, sender)
	if err != nil {
		b.logger.Warn("failed to sign transaction %d for %s: %v", raw.SequenceNumber, raw.Sender, err)
		return nil, err
	}

	b.metrics.IncTxBuilt(raw.Sender.String(), sender.SequenceNumber())
	b.logger.Zerolog().Debug().
		Str("sender", raw.Sender.String()).
		Uint64("sequence_number", raw.SequenceNumber).
		Uint64("expiration", raw.ExpirationTimestampSecs).
		Str("function", payload.String()).
		Msg("transaction built")

	return tx, nil
}

// BuildCall encodes call and builds a transaction for it. Encoding errors are
// returned before any sequence number is consumed.
func (b *Builder) BuildCall(call *move.FunctionCall, sender Sender, chainID txn.ChainID) (*txn.SignedTransaction, error) {
	payload, err := move.NewEntryFunctionPayload(call)
	if err != nil {
		return nil, err
	}
	return b.Build(payload, sender, chainID)
}
