package move

import (
	"encoding/hex"
	"strings"
)

// AddressLength is the byte length of an account address
const AddressLength = 32

// Address is a 32-byte account address. BCS encodes it as raw bytes with no length prefix.
type Address [AddressLength]byte

// Well-known framework addresses
var (
	AddressZero  = Address{}
	AddressOne   = mustAddress("0x1")
	AddressThree = mustAddress("0x3")
	AddressFour  = mustAddress("0x4")
)

// ParseAddress parses a hex address with or without the 0x prefix.
// Short forms are left padded with zeros, so "0x1" is the framework address.
func ParseAddress(s string) (Address, error) {
	var addr Address

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw == "" || len(raw) > AddressLength*2 {
		return addr, encodingErr(ErrInvalidAddress, s)
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}

	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, encodingErr(ErrInvalidAddress, s)
	}

	copy(addr[AddressLength-len(decoded):], decoded)
	return addr, nil
}

func mustAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsSpecial reports whether the address is one of the reserved 0x0..0xf addresses
func (a Address) IsSpecial() bool {
	for _, b := range a[:AddressLength-1] {
		if b != 0 {
			return false
		}
	}
	return a[AddressLength-1] < 0x10
}

// String returns the short form for special addresses and the full 64 hex digit form otherwise
func (a Address) String() string {
	if a.IsSpecial() {
		return "0x" + hex.EncodeToString(a[AddressLength-1:])[1:]
	}
	return a.StringLong()
}

// StringLong always returns all 64 hex digits
func (a Address) StringLong() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler so addresses render as hex in JSON and YAML
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.StringLong()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
