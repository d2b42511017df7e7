package nodeapi

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

// brokenSender hands out sequence numbers but cannot sign
type brokenSender struct {
	*account.LocalAccount
}

func (brokenSender) Sign([]byte) ([]byte, error) {
	return nil, errors.New("hardware key unplugged")
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func messageCall(t *testing.T, module move.Address, msg string) *move.FunctionCall {
	t.Helper()
	call, err := move.NewFunctionCall(module.StringLong()+"::message::set_message", nil, move.UTF8(msg))
	require.NoError(t, err)
	return call
}

func TestBuildAssemblesTransaction(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 7)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	b, err := NewBuilder(nil, WithClock(fixedClock(now)))
	require.NoError(t, err)

	payload, err := move.NewEntryFunctionPayload(messageCall(t, acct.Address(), "hello world!!"))
	require.NoError(t, err)

	tx, err := b.Build(payload, acct, 4)
	require.NoError(t, err)

	assert.Equal(t, acct.Address(), tx.Raw.Sender)
	assert.Equal(t, uint64(7), tx.Raw.SequenceNumber)
	assert.Equal(t, uint64(now.Unix()+60), tx.Raw.ExpirationTimestampSecs)
	assert.Equal(t, uint64(200000), tx.Raw.MaxGasAmount)
	assert.Equal(t, uint64(100), tx.Raw.GasUnitPrice)
	assert.Equal(t, txn.ChainID(4), tx.Raw.ChainID)
	assert.True(t, payload.Equal(&tx.Raw.Payload))
	require.NoError(t, tx.Verify())

	assert.Equal(t, uint64(8), acct.SequenceNumber())
}

func TestBuildConfigurableParameters(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 0)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	b, err := NewBuilder(&BuilderConfig{
		ExpirationWindow: 5 * time.Minute,
		MaxGasAmount:     1000,
		GasUnitPrice:     150,
	}, WithClock(fixedClock(now)))
	require.NoError(t, err)

	tx, err := b.BuildCall(messageCall(t, acct.Address(), "x"), acct, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(now.Unix()+300), tx.Raw.ExpirationTimestampSecs)
	assert.Equal(t, uint64(1000), tx.Raw.MaxGasAmount)
	assert.Equal(t, uint64(150), tx.Raw.GasUnitPrice)
}

func TestRebuildUsesNewSequenceNumber(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 0)
	require.NoError(t, err)

	b, err := NewBuilder(nil)
	require.NoError(t, err)

	call := messageCall(t, acct.Address(), "same message")
	first, err := b.BuildCall(call, acct, 4)
	require.NoError(t, err)
	second, err := b.BuildCall(call, acct, 4)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first.Raw.SequenceNumber)
	assert.Equal(t, uint64(1), second.Raw.SequenceNumber)

	h1, err := first.HashHex()
	require.NoError(t, err)
	h2, err := second.HashHex()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestBuildSignerFailureConsumesSequence(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 3)
	require.NoError(t, err)

	b, err := NewBuilder(nil)
	require.NoError(t, err)

	_, err = b.BuildCall(messageCall(t, acct.Address(), "x"), brokenSender{acct}, 4)
	var sigErr *txn.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.ErrorContains(t, err, "hardware key unplugged")

	assert.Equal(t, uint64(4), acct.SequenceNumber())
}

func TestBuildRejectsBadInputsWithoutConsumingSequence(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 0)
	require.NoError(t, err)

	b, err := NewBuilder(nil)
	require.NoError(t, err)

	bad := &move.FunctionCall{
		Module:   move.ModuleID{Address: acct.Address(), Name: "message"},
		Function: "mess-age",
		Args:     []move.Value{move.UTF8("x")},
	}
	_, err = b.BuildCall(bad, acct, 4)
	var encErr *move.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.ErrorIs(t, err, move.ErrInvalidIdentifier)

	_, err = b.BuildCall(messageCall(t, acct.Address(), "x"), acct, 0)
	assert.Error(t, err)

	_, err = b.Build(nil, acct, 4)
	assert.Error(t, err)

	assert.Equal(t, uint64(0), acct.SequenceNumber())
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder(&BuilderConfig{ExpirationWindow: time.Millisecond, MaxGasAmount: 1, GasUnitPrice: 1})
	assert.Error(t, err)
	_, err = NewBuilder(&BuilderConfig{ExpirationWindow: time.Minute, GasUnitPrice: 1})
	assert.Error(t, err)
	_, err = NewBuilder(&BuilderConfig{ExpirationWindow: time.Minute, MaxGasAmount: 1})
	assert.Error(t, err)
}

func TestSenderInterfaceMatchesAccount(t *testing.T) {
	acct, err := account.New(signer.NewDevKeySigner(), 0)
	require.NoError(t, err)

	var s Sender = acct
	assert.Len(t, s.PublicKey(), ed25519.PublicKeySize)
}
