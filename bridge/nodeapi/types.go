package nodeapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/opendlt/movecall/types/txn"
)

// Transaction types reported by the node
const (
	TypePendingTransaction = "pending_transaction"
	TypeUserTransaction    = "user_transaction"
)

// LedgerInfo is the node's view of the chain head
type LedgerInfo struct {
	ChainID             txn.ChainID `json:"chain_id"`
	Epoch               uint64      `json:"epoch,string"`
	LedgerVersion       uint64      `json:"ledger_version,string"`
	OldestLedgerVersion uint64      `json:"oldest_ledger_version,string"`
	LedgerTimestamp     uint64      `json:"ledger_timestamp,string"` // microseconds
	BlockHeight         uint64      `json:"block_height,string"`
	NodeRole            string      `json:"node_role"`
}

// TimestampSecs returns the ledger timestamp in unix seconds
func (l *LedgerInfo) TimestampSecs() uint64 {
	return l.LedgerTimestamp / uint64(time.Second/time.Microsecond)
}

// Time returns the ledger timestamp as a time.Time
func (l *LedgerInfo) Time() time.Time {
	return time.UnixMicro(int64(l.LedgerTimestamp))
}

// AccountData is the on-chain account resource summary
type AccountData struct {
	SequenceNumber    uint64 `json:"sequence_number,string"`
	AuthenticationKey string `json:"authentication_key"`
}

// Transaction is a transaction as reported by the by-hash endpoint. Pending
// transactions carry no version, success or VM status.
type Transaction struct {
	Type                    string `json:"type"`
	Hash                    string `json:"hash"`
	Sender                  string `json:"sender"`
	SequenceNumber          uint64 `json:"sequence_number,string"`
	ExpirationTimestampSecs uint64 `json:"expiration_timestamp_secs,string"`
	Version                 uint64 `json:"version,string,omitempty"`
	GasUsed                 uint64 `json:"gas_used,string,omitempty"`
	Success                 bool   `json:"success,omitempty"`
	VMStatus                string `json:"vm_status,omitempty"`
	Timestamp               uint64 `json:"timestamp,string,omitempty"`
}

// IsPending reports whether the transaction is still waiting in the mempool
func (t *Transaction) IsPending() bool {
	return t.Type == TypePendingTransaction
}

// PendingTransaction is the node's acknowledgement of a submission
type PendingTransaction struct {
	Hash string `json:"hash"`
}

// ErrorResponse is the JSON body of a node error
type ErrorResponse struct {
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode uint64 `json:"vm_error_code,omitempty"`
}

// ViewRequest calls a view function. Arguments use the node's JSON
// argument encoding; see NewViewRequest.
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// ViewResult holds the values returned by a view function
type ViewResult []json.RawMessage

// Decode unmarshals the i-th return value into v
func (r ViewResult) Decode(i int, v any) error {
	if i < 0 || i >= len(r) {
		return fmt.Errorf("view result has %d values, index %d out of range", len(r), i)
	}
	if err := json.Unmarshal(r[i], v); err != nil {
		return fmt.Errorf("failed to decode view result %d: %w", i, err)
	}
	return nil
}

// String returns the i-th return value as a string
func (r ViewResult) String(i int) (string, error) {
	var s string
	err := r.Decode(i, &s)
	return s, err
}

// Uint64 returns the i-th return value as a u64. The node encodes 64 bit
// integers as decimal strings.
func (r ViewResult) Uint64(i int) (uint64, error) {
	var n json.Number
	if err := r.Decode(i, &n); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("view result %d is not a u64: %w", i, err)
	}
	return v, nil
}

// Bool returns the i-th return value as a bool
func (r ViewResult) Bool(i int) (bool, error) {
	var b bool
	err := r.Decode(i, &b)
	return b, err
}
