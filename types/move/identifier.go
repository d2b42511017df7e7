package move

import (
	"strings"
)

// Identifier is a Move module, function or struct name
type Identifier string

// ParseIdentifier validates s as a Move identifier.
//
// Valid identifiers start with an ASCII letter followed by letters, digits or
// underscores, or start with an underscore followed by at least one of those.
func ParseIdentifier(s string) (Identifier, error) {
	if !isValidIdentifier(s) {
		return "", encodingErr(ErrInvalidIdentifier, s)
	}
	return Identifier(s), nil
}

// MustIdentifier is ParseIdentifier for compile-time constants. It panics on error.
func MustIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate checks the identifier against the Move naming rules
func (id Identifier) Validate() error {
	if !isValidIdentifier(string(id)) {
		return encodingErr(ErrInvalidIdentifier, string(id))
	}
	return nil
}

func (id Identifier) String() string {
	return string(id)
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	rest := s[1:]
	switch c := s[0]; {
	case isASCIILetter(c):
	case c == '_':
		if rest == "" {
			return false
		}
	default:
		return false
	}

	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if !isASCIILetter(c) && !isDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// ModuleID names a published module: its owning address and module name
type ModuleID struct {
	Address Address
	Name    Identifier
}

// NewModuleID validates name and returns the module id
func NewModuleID(addr Address, name string) (ModuleID, error) {
	id, err := ParseIdentifier(name)
	if err != nil {
		return ModuleID{}, err
	}
	return ModuleID{Address: addr, Name: id}, nil
}

// ParseModuleID parses "<address>::<module>"
func ParseModuleID(s string) (ModuleID, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 2 {
		return ModuleID{}, encodingErr(ErrInvalidIdentifier, s)
	}

	addr, err := ParseAddress(parts[0])
	if err != nil {
		return ModuleID{}, err
	}
	return NewModuleID(addr, parts[1])
}

func (m ModuleID) String() string {
	return m.Address.String() + "::" + string(m.Name)
}

// FunctionID is a fully qualified function: "<address>::<module>::<function>"
type FunctionID struct {
	Module ModuleID
	Name   Identifier
}

// ParseFunctionID parses "<address>::<module>::<function>"
func ParseFunctionID(s string) (FunctionID, error) {
	idx := strings.LastIndex(s, "::")
	if idx < 0 {
		return FunctionID{}, encodingErr(ErrInvalidIdentifier, s)
	}

	module, err := ParseModuleID(s[:idx])
	if err != nil {
		return FunctionID{}, err
	}

	name, err := ParseIdentifier(s[idx+2:])
	if err != nil {
		return FunctionID{}, err
	}

	return FunctionID{Module: module, Name: name}, nil
}

// Validate checks both the module and function names
func (f FunctionID) Validate() error {
	if err := f.Module.Name.Validate(); err != nil {
		return err
	}
	return f.Name.Validate()
}

func (f FunctionID) String() string {
	return f.Module.String() + "::" + string(f.Name)
}
