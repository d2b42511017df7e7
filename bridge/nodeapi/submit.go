package nodeapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opendlt/movecall/internal/metrics"
	"github.com/opendlt/movecall/types/txn"
)

// Status is the lifecycle state of a submitted transaction
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusSuccess         Status = "success"
	StatusExecutionFailed Status = "execution_failed"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
)

// IsFinal reports whether no further state change is possible
func (s Status) IsFinal() bool {
	return s != StatusSubmitted
}

// Outcome describes what happened to a submitted transaction
type Outcome struct {
	Hash           string    `json:"hash" cbor:"hash"`
	Sender         string    `json:"sender" cbor:"sender"`
	SequenceNumber uint64    `json:"sequenceNumber" cbor:"sequenceNumber"`
	Status         Status    `json:"status" cbor:"status"`
	Accepted       bool      `json:"accepted" cbor:"accepted"`
	Success        bool      `json:"success" cbor:"success"`
	VMStatus       string    `json:"vmStatus,omitempty" cbor:"vmStatus,omitempty"`
	FailureReason  string    `json:"failureReason,omitempty" cbor:"failureReason,omitempty"`
	Version        uint64    `json:"version,omitempty" cbor:"version,omitempty"`
	GasUsed        uint64    `json:"gasUsed,omitempty" cbor:"gasUsed,omitempty"`
	Expiration     uint64    `json:"expiration" cbor:"expiration"`
	SubmittedAt    time.Time `json:"submittedAt" cbor:"submittedAt"`
	CompletedAt    time.Time `json:"completedAt,omitempty" cbor:"completedAt,omitempty"`
}

// OutcomeRecorder receives every outcome that reaches a final status
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome *Outcome) error
}

// Submit posts tx to the node without waiting for execution. The returned
// outcome is StatusSubmitted when the node accepted the transaction and
// StatusRejected or StatusExpired when it refused it.
func (c *Client) Submit(ctx context.Context, tx *txn.SignedTransaction) (*Outcome, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction cannot be nil")
	}

	hash, err := tx.HashHex()
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}

	outcome := &Outcome{
		Hash:           hash,
		Sender:         tx.Raw.Sender.StringLong(),
		SequenceNumber: tx.Raw.SequenceNumber,
		Status:         StatusSubmitted,
		Expiration:     tx.Raw.ExpirationTimestampSecs,
		SubmittedAt:    time.Now(),
	}

	nodeChain, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if tx.Raw.ChainID != nodeChain {
		err := &ChainMismatchError{TxChainID: tx.Raw.ChainID, NodeChainID: nodeChain}
		c.finish(ctx, outcome, StatusRejected, err, metrics.StatusChainMismatch)
		return outcome, err
	}

	data, err := tx.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	body, err := c.do(ctx, "submit", "POST", "/transactions", contentTypeBCS, data)
	if err != nil {
		var netErr *NetworkError
		var apiErr *APIError
		if errors.As(err, &netErr) || !errors.As(err, &apiErr) {
			c.metrics.ObserveSubmission(metrics.StatusNetworkError)
			return nil, fmt.Errorf("submission of %s failed: %w", hash, err)
		}

		rejection := classifyRejection(tx, apiErr)
		switch rejection.(type) {
		case *ExpiredError:
			c.finish(ctx, outcome, StatusExpired, rejection, metrics.StatusExpired)
		case *ChainMismatchError:
			c.finish(ctx, outcome, StatusRejected, rejection, metrics.StatusChainMismatch)
		default:
			c.finish(ctx, outcome, StatusRejected, rejection, metrics.StatusRejected)
		}
		return outcome, rejection
	}

	var pending PendingTransaction
	if err := decodeJSON("submit", body, &pending); err != nil {
		return nil, err
	}
	if !strings.EqualFold(pending.Hash, hash) {
		return nil, fmt.Errorf("node acknowledged hash %s, locally computed %s", pending.Hash, hash)
	}

	outcome.Accepted = true
	c.logger.Zerolog().Info().
		Str("hash", hash).
		Str("sender", outcome.Sender).
		Uint64("sequence_number", outcome.SequenceNumber).
		Msg("transaction submitted")

	return outcome, nil
}

// classifyRejection turns a 4xx submission response into the matching error type
func classifyRejection(tx *txn.SignedTransaction, apiErr *APIError) error {
	switch {
	case apiErr.VMErrorCode == VMStatusTransactionExpired || strings.Contains(apiErr.Message, "TRANSACTION_EXPIRED"):
		return &ExpiredError{Expiration: tx.Raw.ExpirationTimestampSecs}
	case apiErr.VMErrorCode == VMStatusBadChainID || strings.Contains(apiErr.Message, "BAD_CHAIN_ID"):
		return &ChainMismatchError{TxChainID: tx.Raw.ChainID}
	}
	return &SubmissionRejectedError{
		Code:        apiErr.ErrorCode,
		VMErrorCode: apiErr.VMErrorCode,
		Message:     apiErr.Message,
	}
}

// WaitForTransaction polls the node until the submitted transaction reaches a
// final status. A transaction that stays unknown or pending once the ledger
// reaches its expiration time is reported as expired.
func (c *Client) WaitForTransaction(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	if outcome == nil {
		return nil, fmt.Errorf("outcome cannot be nil")
	}
	if outcome.Status.IsFinal() {
		return outcome, nil
	}

	if c.config.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WaitTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		tx, err := c.GetTransactionByHash(ctx, outcome.Hash)
		switch {
		case err == nil && !tx.IsPending():
			outcome.Version = tx.Version
			outcome.GasUsed = tx.GasUsed
			outcome.VMStatus = tx.VMStatus
			outcome.Success = tx.Success
			if tx.Success {
				c.finish(ctx, outcome, StatusSuccess, nil, metrics.StatusSuccess)
				return outcome, nil
			}
			failure := &ExecutionFailedError{Hash: outcome.Hash, VMStatus: tx.VMStatus}
			c.finish(ctx, outcome, StatusExecutionFailed, failure, metrics.StatusExecutionFailed)
			return outcome, failure

		case err == nil || IsNotFound(err):
			ledger, err := c.GetLedgerInfo(ctx)
			if err != nil {
				return c.abandon(outcome, err)
			}
			if ledger.TimestampSecs() >= outcome.Expiration {
				expired := &ExpiredError{
					Hash:            outcome.Hash,
					Expiration:      outcome.Expiration,
					LedgerTimestamp: ledger.TimestampSecs(),
				}
				c.finish(ctx, outcome, StatusExpired, expired, metrics.StatusExpired)
				return outcome, expired
			}

		default:
			return c.abandon(outcome, err)
		}

		select {
		case <-ctx.Done():
			return c.abandon(outcome, &NetworkError{Op: "wait", Err: ctx.Err()})
		case <-ticker.C:
		}
	}
}

// SubmitAndWait submits tx and waits for its final status. The error is nil
// only when the transaction executed successfully; a committed failure
// returns both the outcome and an *ExecutionFailedError.
func (c *Client) SubmitAndWait(ctx context.Context, tx *txn.SignedTransaction) (*Outcome, error) {
	outcome, err := c.Submit(ctx, tx)
	if err != nil {
		return outcome, err
	}
	return c.WaitForTransaction(ctx, outcome)
}

// abandon stops waiting on an accepted transaction; the chain may still commit it
func (c *Client) abandon(outcome *Outcome, err error) (*Outcome, error) {
	c.metrics.ObserveSubmission(metrics.StatusNetworkError)
	c.logger.Zerolog().Warn().
		Str("hash", outcome.Hash).
		Err(err).
		Msg("stopped waiting for transaction")
	return outcome, fmt.Errorf("waiting for %s failed: %w", outcome.Hash, err)
}

// finish stamps a final status on outcome, reports it and hands it to the recorder
func (c *Client) finish(ctx context.Context, outcome *Outcome, status Status, cause error, metricStatus string) {
	outcome.Status = status
	outcome.Success = status == StatusSuccess
	outcome.CompletedAt = time.Now()
	if cause != nil {
		outcome.FailureReason = cause.Error()
	}

	c.metrics.ObserveSubmission(metricStatus)
	if outcome.Accepted {
		c.metrics.ObserveWait(outcome.CompletedAt.Sub(outcome.SubmittedAt))
	}

	event := c.logger.Zerolog().Info()
	if cause != nil {
		event = c.logger.Zerolog().Warn().Err(cause)
	}
	event.Str("hash", outcome.Hash).
		Str("status", string(status)).
		Uint64("sequence_number", outcome.SequenceNumber).
		Str("vm_status", outcome.VMStatus).
		Msg("transaction finished")

	if c.recorder != nil {
		if err := c.recorder.RecordOutcome(context.WithoutCancel(ctx), outcome); err != nil {
			c.logger.Warn("failed to record outcome for %s: %v", outcome.Hash, err)
		}
	}
}
