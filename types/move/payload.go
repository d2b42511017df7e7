package move

import (
	"bytes"
	"fmt"

	"github.com/fardream/go-bcs/bcs"
)

// FunctionCall is a logical invocation of an entry function
type FunctionCall struct {
	Module   ModuleID
	Function Identifier
	TypeArgs []TypeTag
	Args     []Value
}

// NewFunctionCall parses functionID ("<address>::<module>::<function>") and the
// textual type arguments and returns the call.
func NewFunctionCall(functionID string, typeArgs []string, args ...Value) (*FunctionCall, error) {
	fn, err := ParseFunctionID(functionID)
	if err != nil {
		return nil, err
	}

	tags, err := ParseTypeTags(typeArgs)
	if err != nil {
		return nil, err
	}

	return &FunctionCall{
		Module:   fn.Module,
		Function: fn.Name,
		TypeArgs: tags,
		Args:     args,
	}, nil
}

// FunctionID returns the fully qualified function being called
func (c *FunctionCall) FunctionID() FunctionID {
	return FunctionID{Module: c.Module, Name: c.Function}
}

// Validate checks identifiers and type arguments without encoding anything
func (c *FunctionCall) Validate() error {
	if err := c.FunctionID().Validate(); err != nil {
		return err
	}
	for _, tag := range c.TypeArgs {
		if err := tag.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EntryFunction is the on-chain form of a FunctionCall: arguments are
// individually BCS encoded byte strings.
type EntryFunction struct {
	Module   ModuleID
	Function Identifier
	TypeArgs []TypeTag
	Args     [][]byte
}

// Script occupies variant 0 of TransactionPayload. This package never produces it.
type Script struct {
	Code     []byte
	TypeArgs []TypeTag
}

// ModuleBundle occupies the deprecated variant 1 of TransactionPayload. This package never produces it.
type ModuleBundle struct {
	Modules [][]byte
}

// TransactionPayload is the BCS enum embedded in a raw transaction
type TransactionPayload struct {
	Script        *Script
	ModuleBundle  *ModuleBundle
	EntryFunction *EntryFunction
}

// IsBcsEnum marks TransactionPayload as a BCS enum
func (TransactionPayload) IsBcsEnum() {}

// NewEntryFunctionPayload validates the call and encodes its arguments.
// Encoding is pure: the same call always yields the same bytes.
func NewEntryFunctionPayload(call *FunctionCall) (*TransactionPayload, error) {
	if call == nil {
		return nil, encodingErrf(ErrInvalidValue, "function call cannot be nil")
	}

	if err := call.Validate(); err != nil {
		return nil, err
	}

	args, err := EncodeAll(call.Args)
	if err != nil {
		return nil, err
	}

	typeArgs := call.TypeArgs
	if typeArgs == nil {
		typeArgs = []TypeTag{}
	}

	return &TransactionPayload{
		EntryFunction: &EntryFunction{
			Module:   call.Module,
			Function: call.Function,
			TypeArgs: typeArgs,
			Args:     args,
		},
	}, nil
}

// Bytes returns the BCS encoding of the payload
func (p *TransactionPayload) Bytes() ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload cannot be nil")
	}
	data, err := bcs.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

// Equal reports whether both payloads encode to the same bytes
func (p *TransactionPayload) Equal(o *TransactionPayload) bool {
	a, errA := p.Bytes()
	b, errB := o.Bytes()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// String describes the payload for logs
func (p *TransactionPayload) String() string {
	if p == nil {
		return "<nil>"
	}
	if ef := p.EntryFunction; ef != nil {
		return fmt.Sprintf("EntryFunction{%s::%s, typeArgs: %d, args: %d}", ef.Module, ef.Function, len(ef.TypeArgs), len(ef.Args))
	}
	return "Payload{unsupported}"
}
