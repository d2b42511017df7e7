package nodeapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/internal/testnode"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

type fixture struct {
	node    *testnode.Node
	client  *Client
	builder *Builder
	account *account.LocalAccount
}

func newFixture(t *testing.T, nodeConfig *testnode.Config, opts ...Option) *fixture {
	t.Helper()

	node := testnode.New(t, nodeConfig)

	acct, err := account.New(signer.NewDevKeySigner(), 0)
	require.NoError(t, err)
	node.CreateAccount(acct.PublicKey())
	node.PublishMessageModule(acct.Address())

	config := DefaultClientConfig(node.URL())
	config.PollInterval = 5 * time.Millisecond
	config.WaitTimeout = 5 * time.Second
	client, err := NewClient(config, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	builder, err := NewBuilder(nil, WithClock(node.Now))
	require.NoError(t, err)

	return &fixture{node: node, client: client, builder: builder, account: acct}
}

func (f *fixture) setMessage(t *testing.T, msg string) *txn.SignedTransaction {
	t.Helper()
	tx, err := f.builder.BuildCall(messageCall(t, f.account.Address(), msg), f.account, f.node.ChainID())
	require.NoError(t, err)
	return tx
}

func (f *fixture) getMessage(t *testing.T) (ViewResult, error) {
	t.Helper()
	req, err := NewViewRequest(f.account.Address().StringLong()+"::message::get_message", nil, f.account.Address())
	require.NoError(t, err)
	return f.client.View(context.Background(), req)
}

type memoryRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *memoryRecorder) RecordOutcome(_ context.Context, o *Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, *o)
	return nil
}

func TestSetMessageThenView(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seq, err := f.account.Sync(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	outcome, err := f.client.SubmitAndWait(ctx, f.setMessage(t, "hello world!!"))
	require.NoError(t, Verify(outcome, err))
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.True(t, outcome.Accepted)
	assert.True(t, outcome.Success)
	assert.Equal(t, "Executed successfully", outcome.VMStatus)
	assert.NotZero(t, outcome.Version)
	assert.NotZero(t, outcome.GasUsed)

	result, err := f.getMessage(t)
	require.NoError(t, err)
	msg, err := result.String(0)
	require.NoError(t, err)
	assert.Equal(t, "hello world!!", msg)

	assert.Equal(t, uint64(1), f.node.SequenceNumber(f.account.Address()))
	assert.Equal(t, uint64(1), f.account.SequenceNumber())
}

func TestSequentialSubmissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i, msg := range []string{"first", "second", "third"} {
		tx := f.setMessage(t, msg)
		assert.Equal(t, uint64(i), tx.Raw.SequenceNumber)

		outcome, err := f.client.SubmitAndWait(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), outcome.SequenceNumber)
	}

	result, err := f.getMessage(t)
	require.NoError(t, err)
	msg, err := result.String(0)
	require.NoError(t, err)
	assert.Equal(t, "third", msg)
	assert.Equal(t, uint64(3), f.node.SequenceNumber(f.account.Address()))
}

func TestSyncPicksUpOnChainSequence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.node.SetSequenceNumber(f.account.Address(), 9)
	_, err := f.account.Sync(ctx, f.client)
	require.NoError(t, err)

	tx := f.setMessage(t, "after sync")
	assert.Equal(t, uint64(9), tx.Raw.SequenceNumber)

	_, err = f.client.SubmitAndWait(ctx, tx)
	require.NoError(t, err)
}

func TestPendingTransactionIsPolled(t *testing.T) {
	f := newFixture(t, &testnode.Config{ChainID: 4, PendingPolls: 3})

	outcome, err := f.client.SubmitAndWait(context.Background(), f.setMessage(t, "slow"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.GreaterOrEqual(t, f.node.Requests("transaction"), 4)
}

func TestChainMismatchDetectedBeforeSubmission(t *testing.T) {
	recorder := &memoryRecorder{}
	f := newFixture(t, nil, WithRecorder(recorder))

	tx, err := f.builder.BuildCall(messageCall(t, f.account.Address(), "x"), f.account, 5)
	require.NoError(t, err)

	outcome, err := f.client.SubmitAndWait(context.Background(), tx)
	var mismatch *ChainMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, txn.ChainID(5), mismatch.TxChainID)
	assert.Equal(t, txn.ChainID(4), mismatch.NodeChainID)

	assert.Equal(t, 0, f.node.Requests("submit"))
	assert.Equal(t, StatusRejected, outcome.Status)
	assert.False(t, outcome.Accepted)

	require.Len(t, recorder.outcomes, 1)
	assert.Equal(t, StatusRejected, recorder.outcomes[0].Status)
}

func TestNodeSideChainMismatch(t *testing.T) {
	f := newFixture(t, nil)

	tx, err := f.builder.BuildCall(messageCall(t, f.account.Address(), "x"), f.account, 5)
	require.NoError(t, err)

	// Pretend the cached ledger info agreed with the transaction
	f.client.mu.Lock()
	f.client.chainID = 5
	f.client.mu.Unlock()

	_, err = f.client.SubmitAndWait(context.Background(), tx)
	var mismatch *ChainMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, f.node.Requests("submit"))
}

func TestExpiredBeforeSubmission(t *testing.T) {
	f := newFixture(t, nil)

	stale, err := NewBuilder(nil, WithClock(func() time.Time { return f.node.Now().Add(-2 * time.Minute) }))
	require.NoError(t, err)
	tx, err := stale.BuildCall(messageCall(t, f.account.Address(), "late"), f.account, 4)
	require.NoError(t, err)

	outcome, err := f.client.SubmitAndWait(context.Background(), tx)
	var expired *ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, tx.Raw.ExpirationTimestampSecs, expired.Expiration)
	assert.Equal(t, StatusExpired, outcome.Status)
	assert.False(t, outcome.Accepted)

	var rejected *SubmissionRejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestExpiredWhileWaiting(t *testing.T) {
	f := newFixture(t, &testnode.Config{ChainID: 4, TimeStep: 20 * time.Second})
	f.node.DropNext(1)

	tx := f.setMessage(t, "lost")
	outcome, err := f.client.SubmitAndWait(context.Background(), tx)

	var expired *ExpiredError
	require.ErrorAs(t, err, &expired)
	assert.GreaterOrEqual(t, expired.LedgerTimestamp, expired.Expiration)
	assert.Equal(t, StatusExpired, outcome.Status)
	assert.True(t, outcome.Accepted)
	assert.False(t, outcome.Success)

	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
	assert.Equal(t, uint64(0), f.node.SequenceNumber(f.account.Address()))
}

func TestExecutionFailureIsDistinct(t *testing.T) {
	f := newFixture(t, nil)

	call, err := move.NewFunctionCall(f.account.Address().StringLong()+"::message::set_message", nil, move.Bytes([]byte{0xff, 0xfe}))
	require.NoError(t, err)
	tx, err := f.builder.BuildCall(call, f.account, 4)
	require.NoError(t, err)

	outcome, err := f.client.SubmitAndWait(context.Background(), tx)
	var failed *ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.VMStatus, "EINVALID_UTF8")

	require.NotNil(t, outcome)
	assert.True(t, outcome.Accepted)
	assert.False(t, outcome.Success)
	assert.Equal(t, StatusExecutionFailed, outcome.Status)

	assert.ErrorAs(t, Verify(outcome, nil), &failed)

	// the failed transaction still consumed its sequence number
	assert.Equal(t, uint64(1), f.node.SequenceNumber(f.account.Address()))
	_, stored := f.node.Message(f.account.Address())
	assert.False(t, stored)
}

func TestUnknownFunctionFailsExecution(t *testing.T) {
	f := newFixture(t, nil)

	call, err := move.NewFunctionCall(f.account.Address().StringLong()+"::message::set_greeting", nil, move.UTF8("hi"))
	require.NoError(t, err)
	tx, err := f.builder.BuildCall(call, f.account, 4)
	require.NoError(t, err)

	_, err = f.client.SubmitAndWait(context.Background(), tx)
	var failed *ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "FUNCTION_RESOLUTION_FAILURE", failed.VMStatus)
}

func TestStaleSequenceNumberIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.client.SubmitAndWait(ctx, f.setMessage(t, "one"))
	require.NoError(t, err)

	f.account.SetSequenceNumber(0)
	outcome, err := f.client.SubmitAndWait(ctx, f.setMessage(t, "replay"))

	var rejected *SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, VMStatusSequenceNumberTooOld, rejected.VMErrorCode)
	assert.Equal(t, "vm_error", rejected.Code)
	assert.Equal(t, StatusRejected, outcome.Status)

	var failed *ExecutionFailedError
	assert.False(t, errors.As(err, &failed))

	msg, _ := f.node.Message(f.account.Address())
	assert.Equal(t, "one", msg)
}

func TestUnknownSenderIsRejected(t *testing.T) {
	f := newFixture(t, nil)

	_, priv, err := signer.GenerateEd25519()
	require.NoError(t, err)
	stranger, err := account.FromPrivateKey(priv, 0)
	require.NoError(t, err)

	tx, err := f.builder.BuildCall(messageCall(t, f.account.Address(), "x"), stranger, 4)
	require.NoError(t, err)

	_, err = f.client.SubmitAndWait(context.Background(), tx)
	var rejected *SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, VMStatusAccountDoesNotExist, rejected.VMErrorCode)
}

func TestAbandonedWaitIsNetworkError(t *testing.T) {
	f := newFixture(t, &testnode.Config{ChainID: 4, PendingPolls: 1_000_000})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	outcome, err := f.client.SubmitAndWait(ctx, f.setMessage(t, "never mind"))
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Retryable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, outcome)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, StatusSubmitted, outcome.Status)
}

func TestRecorderSeesFinalOutcomes(t *testing.T) {
	recorder := &memoryRecorder{}
	f := newFixture(t, nil, WithRecorder(recorder))
	ctx := context.Background()

	ok, err := f.client.SubmitAndWait(ctx, f.setMessage(t, "recorded"))
	require.NoError(t, err)

	f.account.SetSequenceNumber(0)
	_, err = f.client.SubmitAndWait(ctx, f.setMessage(t, "rejected"))
	require.Error(t, err)

	require.Len(t, recorder.outcomes, 2)
	assert.Equal(t, ok.Hash, recorder.outcomes[0].Hash)
	assert.Equal(t, StatusSuccess, recorder.outcomes[0].Status)
	assert.Equal(t, StatusRejected, recorder.outcomes[1].Status)
	assert.NotEmpty(t, recorder.outcomes[1].FailureReason)
}

func TestSubmitThenWaitSeparately(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tx := f.setMessage(t, "two steps")
	hash, err := tx.HashHex()
	require.NoError(t, err)

	outcome, err := f.client.Submit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, hash, outcome.Hash)
	assert.Equal(t, StatusSubmitted, outcome.Status)
	assert.True(t, outcome.Accepted)

	outcome, err = f.client.WaitForTransaction(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)

	committed, success := f.node.Committed(hash)
	assert.True(t, committed)
	assert.True(t, success)

	// waiting again on a final outcome is a no-op
	again, err := f.client.WaitForTransaction(ctx, outcome)
	require.NoError(t, err)
	assert.Same(t, outcome, again)
}

func TestVerify(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, Verify(nil, boom))
	assert.Error(t, Verify(nil, nil))
	assert.NoError(t, Verify(&Outcome{Success: true, Status: StatusSuccess}, nil))

	var failed *ExecutionFailedError
	require.ErrorAs(t, Verify(&Outcome{Hash: "0x1", VMStatus: "ABORTED"}, nil), &failed)
	assert.Equal(t, "ABORTED", failed.VMStatus)
}
