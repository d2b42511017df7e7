package testnode

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

const bcsContentType = "application/x.aptos.signed_transaction+bcs"

// Validation status codes reported in vm_error_code
const (
	statusInvalidSignature     = 1
	statusInvalidAuthKey       = 2
	statusSequenceNumberTooOld = 3
	statusTransactionExpired   = 6
	statusAccountDoesNotExist  = 7
	statusBadChainID           = 23
)

var statusNames = map[uint64]string{
	statusInvalidSignature:     "INVALID_SIGNATURE",
	statusInvalidAuthKey:       "INVALID_AUTH_KEY",
	statusSequenceNumberTooOld: "SEQUENCE_NUMBER_TOO_OLD",
	statusTransactionExpired:   "TRANSACTION_EXPIRED",
	statusAccountDoesNotExist:  "SENDING_ACCOUNT_DOES_NOT_EXIST",
	statusBadChainID:           "BAD_CHAIN_ID",
}

type errorBody struct {
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode uint64 `json:"vm_error_code,omitempty"`
}

type transactionBody struct {
	Type                    string `json:"type"`
	Hash                    string `json:"hash"`
	Sender                  string `json:"sender"`
	SequenceNumber          string `json:"sequence_number"`
	MaxGasAmount            string `json:"max_gas_amount"`
	GasUnitPrice            string `json:"gas_unit_price"`
	ExpirationTimestampSecs string `json:"expiration_timestamp_secs"`
	Version                 string `json:"version,omitempty"`
	GasUsed                 string `json:"gas_used,omitempty"`
	Success                 *bool  `json:"success,omitempty"`
	VMStatus                string `json:"vm_status,omitempty"`
	Timestamp               string `json:"timestamp,omitempty"`
}

type viewBody struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Message: message, ErrorCode: code})
}

func writeVMError(w http.ResponseWriter, vmStatus uint64) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Message:     "Invalid transaction: Type: Validation Code: " + statusNames[vmStatus],
		ErrorCode:   "vm_error",
		VMErrorCode: vmStatus,
	})
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func (n *Node) handleLedgerInfo(w http.ResponseWriter, _ *http.Request) {
	n.mu.Lock()
	n.requests["ledger"]++
	n.now = n.now.Add(n.config.TimeStep)
	n.process()
	body := map[string]any{
		"chain_id":              n.config.ChainID,
		"epoch":                 "1",
		"ledger_version":        strconv.FormatUint(n.version, 10),
		"oldest_ledger_version": "0",
		"ledger_timestamp":      micros(n.now),
		"block_height":          strconv.FormatUint(n.version, 10),
		"node_role":             "full_node",
	}
	n.mu.Unlock()

	writeJSON(w, http.StatusOK, body)
}

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := move.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	n.mu.Lock()
	n.requests["account"]++
	n.process()
	acct, ok := n.accounts[addr]
	var body map[string]string
	if ok {
		body = map[string]string{
			"sequence_number":    strconv.FormatUint(acct.seq, 10),
			"authentication_key": acct.authKey.StringLong(),
		}
	}
	n.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "account_not_found", fmt.Sprintf("Account not found by Address(%s)", addr.StringLong()))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (n *Node) handleSubmit(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.requests["submit"]++
	n.mu.Unlock()

	if ct := r.Header.Get("Content-Type"); ct != bcsContentType {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported content type "+ct)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	tx, err := txn.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Failed to deserialize input into SignedTransaction: "+err.Error())
		return
	}

	hash, err := tx.HashHex()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.process()

	if tx.Raw.ChainID != n.config.ChainID {
		writeVMError(w, statusBadChainID)
		return
	}
	if err := tx.Verify(); err != nil {
		writeVMError(w, statusInvalidSignature)
		return
	}

	acct, ok := n.accounts[tx.Raw.Sender]
	if !ok {
		writeVMError(w, statusAccountDoesNotExist)
		return
	}
	if account.AuthenticationKey(tx.Authenticator.Ed25519.PublicKey) != acct.authKey {
		writeVMError(w, statusInvalidAuthKey)
		return
	}
	if uint64(n.now.Unix()) >= tx.Raw.ExpirationTimestampSecs {
		writeVMError(w, statusTransactionExpired)
		return
	}
	if tx.Raw.SequenceNumber < acct.seq {
		writeVMError(w, statusSequenceNumberTooOld)
		return
	}

	_, known := n.pool[hash]
	if _, done := n.committed[hash]; !known && !done {
		for _, p := range n.pool {
			if p.tx.Raw.Sender == tx.Raw.Sender && p.tx.Raw.SequenceNumber == tx.Raw.SequenceNumber {
				writeError(w, http.StatusBadRequest, "invalid_transaction_update", "Transaction already in mempool with a different payload")
				return
			}
		}

		if n.dropNext > 0 {
			n.dropNext--
		} else {
			n.pool[hash] = &pendingTx{tx: tx, hash: hash, polls: n.config.PendingPolls}
		}
	}

	writeJSON(w, http.StatusAccepted, n.renderTransaction(tx, hash, nil))
}

func (n *Node) handleTransactionByHash(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(r.PathValue("hash"))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests["transaction"]++

	if p, ok := n.pool[hash]; ok && p.polls > 0 {
		p.polls--
		writeJSON(w, http.StatusOK, n.renderTransaction(p.tx, hash, nil))
		return
	}

	n.process()

	if c, ok := n.committed[hash]; ok {
		writeJSON(w, http.StatusOK, n.renderTransaction(c.tx, hash, c))
		return
	}
	if p, ok := n.pool[hash]; ok {
		writeJSON(w, http.StatusOK, n.renderTransaction(p.tx, hash, nil))
		return
	}

	writeError(w, http.StatusNotFound, "transaction_not_found", fmt.Sprintf("Transaction not found by Transaction hash(%s)", hash))
}

// renderTransaction renders tx as pending, or as committed when c is set
func (n *Node) renderTransaction(tx *txn.SignedTransaction, hash string, c *committedTx) transactionBody {
	body := transactionBody{
		Type:                    "pending_transaction",
		Hash:                    hash,
		Sender:                  tx.Raw.Sender.StringLong(),
		SequenceNumber:          strconv.FormatUint(tx.Raw.SequenceNumber, 10),
		MaxGasAmount:            strconv.FormatUint(tx.Raw.MaxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(tx.Raw.GasUnitPrice, 10),
		ExpirationTimestampSecs: strconv.FormatUint(tx.Raw.ExpirationTimestampSecs, 10),
	}
	if c != nil {
		success := c.success
		body.Type = "user_transaction"
		body.Version = strconv.FormatUint(c.version, 10)
		body.GasUsed = strconv.FormatUint(c.gasUsed, 10)
		body.Success = &success
		body.VMStatus = c.vmStatus
		body.Timestamp = micros(c.time)
	}
	return body
}

func (n *Node) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	fn, err := move.ParseFunctionID(req.Function)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests["view"]++
	n.process()

	result, status, err := n.view(fn, req.TypeArguments, req.Arguments)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error(), ErrorCode: "invalid_input", VMErrorCode: status})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
