package nodeapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/opendlt/movecall/types/txn"
)

// VM status codes the client distinguishes in submission rejections
const (
	VMStatusInvalidSignature     uint64 = 1
	VMStatusInvalidAuthKey       uint64 = 2
	VMStatusSequenceNumberTooOld uint64 = 3
	VMStatusSequenceNumberTooNew uint64 = 4
	VMStatusTransactionExpired   uint64 = 6
	VMStatusAccountDoesNotExist  uint64 = 7
	VMStatusBadChainID           uint64 = 23
)

// APIError is a non-2xx response carrying the node's error body
type APIError struct {
	StatusCode  int
	Message     string
	ErrorCode   string
	VMErrorCode uint64
}

func (e *APIError) Error() string {
	if e.VMErrorCode != 0 {
		return fmt.Sprintf("node returned %d %s (vm status %d): %s", e.StatusCode, e.ErrorCode, e.VMErrorCode, e.Message)
	}
	return fmt.Sprintf("node returned %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the node
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NetworkError reports a transport failure, a 5xx response or an abandoned
// wait. The transaction may or may not have reached the node.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: node returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the operation may be retried. Network errors
// always are; the client never retries on its own.
func (e *NetworkError) Retryable() bool {
	return true
}

// ChainMismatchError reports a transaction built for a different chain than the node serves
type ChainMismatchError struct {
	TxChainID   txn.ChainID
	NodeChainID txn.ChainID
}

func (e *ChainMismatchError) Error() string {
	if e.NodeChainID == 0 {
		return fmt.Sprintf("chain id mismatch: transaction is for chain %d, node rejected it", e.TxChainID)
	}
	return fmt.Sprintf("chain id mismatch: transaction is for chain %d, node serves chain %d", e.TxChainID, e.NodeChainID)
}

// SubmissionRejectedError reports a transaction the node refused to accept.
// Nothing was executed and the sequence number was not consumed on chain.
type SubmissionRejectedError struct {
	Code        string
	VMErrorCode uint64
	Message     string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s (vm status %d): %s", e.Code, e.VMErrorCode, e.Message)
}

// ExecutionFailedError reports a committed transaction whose execution
// failed. The sequence number was consumed and gas was charged.
type ExecutionFailedError struct {
	Hash     string
	VMStatus string
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("transaction %s executed with failure: %s", e.Hash, e.VMStatus)
}

// ExpiredError reports a transaction that can no longer be committed because
// the ledger moved past its expiration time. Timestamps are unix seconds.
type ExpiredError struct {
	Hash            string
	Expiration      uint64
	LedgerTimestamp uint64
}

func (e *ExpiredError) Error() string {
	if e.LedgerTimestamp == 0 {
		return fmt.Sprintf("transaction %s expired at %d before submission", e.Hash, e.Expiration)
	}
	return fmt.Sprintf("transaction %s expired at %d, ledger is at %d", e.Hash, e.Expiration, e.LedgerTimestamp)
}

// Verify collapses the result of SubmitAndWait into a single error that is
// nil only when the transaction executed successfully.
func Verify(outcome *Outcome, err error) error {
	if err != nil {
		return err
	}
	if outcome == nil {
		return fmt.Errorf("no outcome to verify")
	}
	if !outcome.Success {
		return &ExecutionFailedError{Hash: outcome.Hash, VMStatus: outcome.VMStatus}
	}
	return nil
}
