package testnode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/opendlt/movecall/types/move"
	"github.com/opendlt/movecall/types/txn"
)

const (
	messageModule = "message"

	vmStatusExecuted = "Executed successfully"

	// Gas charged per entry function call and per argument byte
	baseGas     = 6
	perByteGas  = 1
	abortStatus = 4016
)

// execute runs the entry function of tx against node state. Callers must hold n.mu.
func (n *Node) execute(tx *txn.SignedTransaction) (success bool, vmStatus string, gasUsed uint64) {
	ef := tx.Raw.Payload.EntryFunction

	gasUsed = baseGas
	for _, arg := range ef.Args {
		gasUsed += perByteGas * uint64(len(arg))
	}
	if gasUsed > tx.Raw.MaxGasAmount {
		return false, "OUT_OF_GAS", tx.Raw.MaxGasAmount
	}

	if !n.modules[ef.Module.Address] || ef.Module.Name != messageModule {
		return false, "LINKER_ERROR", gasUsed
	}

	switch ef.Function {
	case "set_message":
		if len(ef.TypeArgs) != 0 {
			return false, "NUMBER_OF_TYPE_ARGUMENTS_MISMATCH", gasUsed
		}
		if len(ef.Args) != 1 {
			return false, "NUMBER_OF_ARGUMENTS_MISMATCH", gasUsed
		}
		msg, ok := decodeBytes(ef.Args[0])
		if !ok {
			return false, "FAILED_TO_DESERIALIZE_ARGUMENT", gasUsed
		}
		if !utf8.Valid(msg) {
			return false, "Move abort in 0x1::string: EINVALID_UTF8(0x1): An invalid UTF8 encoding.", gasUsed
		}
		n.messages[tx.Raw.Sender] = string(msg)
		return true, vmStatusExecuted, gasUsed

	default:
		return false, "FUNCTION_RESOLUTION_FAILURE", gasUsed
	}
}

// decodeBytes decodes a BCS vector<u8> that spans all of arg
func decodeBytes(arg []byte) ([]byte, bool) {
	length, n := binary.Uvarint(arg)
	if n <= 0 || uint64(len(arg)-n) != length {
		return nil, false
	}
	return arg[n:], true
}

// view evaluates a view function. Callers must hold n.mu.
func (n *Node) view(fn move.FunctionID, typeArgs []string, args []any) ([]any, uint64, error) {
	if len(typeArgs) != 0 {
		return nil, 0, fmt.Errorf("function %s takes no type arguments", fn)
	}

	addrArg := func() (move.Address, error) {
		if len(args) != 1 {
			return move.Address{}, fmt.Errorf("function %s takes 1 argument, got %d", fn, len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return move.Address{}, fmt.Errorf("argument 0 of %s must be an address string", fn)
		}
		return move.ParseAddress(s)
	}

	switch {
	case n.modules[fn.Module.Address] && fn.Module.Name == messageModule && fn.Name == "get_message":
		addr, err := addrArg()
		if err != nil {
			return nil, 0, err
		}
		msg, ok := n.messages[addr]
		if !ok {
			return nil, abortStatus, fmt.Errorf("Move abort in %s::%s: ENO_MESSAGE(0x0)", fn.Module.Address.StringLong(), messageModule)
		}
		return []any{msg}, 0, nil

	case fn.Module.Address == move.AddressOne && fn.Module.Name == "account" && fn.Name == "get_sequence_number":
		addr, err := addrArg()
		if err != nil {
			return nil, 0, err
		}
		acct, ok := n.accounts[addr]
		if !ok {
			return nil, abortStatus, errors.New("Move abort in 0x1::account: EACCOUNT_DOES_NOT_EXIST(0x60002)")
		}
		return []any{strconv.FormatUint(acct.seq, 10)}, 0, nil

	case fn.Module.Address == move.AddressOne && fn.Module.Name == "account" && fn.Name == "exists_at":
		addr, err := addrArg()
		if err != nil {
			return nil, 0, err
		}
		_, ok := n.accounts[addr]
		return []any{ok}, 0, nil
	}

	return nil, 0, fmt.Errorf("function %s not found", fn)
}
