package move

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"

	"github.com/fardream/go-bcs/bcs"
)

// Value is a typed Move value used as a call argument.
//
// The set of implementations is closed: Bool, U8, U16, U32, U64, U128, U256,
// Address, Signer, Vector and Struct.
type Value interface {
	moveValue()
}

// Bool is a Move bool
type Bool bool

// U8 is a Move u8
type U8 uint8

// U16 is a Move u16
type U16 uint16

// U32 is a Move u32
type U32 uint32

// U64 is a Move u64
type U64 uint64

// U128 is a Move u128. Use NewU128 to construct one from a big.Int.
type U128 struct{ v *big.Int }

// U256 is a Move u256. Use NewU256 to construct one from a big.Int.
type U256 struct{ v *big.Int }

// Signer is a Move signer, carried as the signing account's address
type Signer Address

// Vector is a Move vector. All elements must have the same Move type,
// including the element types of nested vectors and the fields of structs.
type Vector []Value

// Struct is a Move struct value; its fields are encoded in declaration order
type Struct []Value

func (Bool) moveValue()    {}
func (U8) moveValue()      {}
func (U16) moveValue()     {}
func (U32) moveValue()     {}
func (U64) moveValue()     {}
func (U128) moveValue()    {}
func (U256) moveValue()    {}
func (Address) moveValue() {}
func (Signer) moveValue()  {}
func (Vector) moveValue()  {}
func (Struct) moveValue()  {}

var (
	maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// NewU128 returns v as a u128, failing if it is negative or wider than 128 bits
func NewU128(v *big.Int) (U128, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(maxU128) > 0 {
		return U128{}, encodingErrf(ErrInvalidValue, "u128 out of range: %v", v)
	}
	return U128{v: new(big.Int).Set(v)}, nil
}

// NewU256 returns v as a u256, failing if it is negative or wider than 256 bits
func NewU256(v *big.Int) (U256, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(maxU256) > 0 {
		return U256{}, encodingErrf(ErrInvalidValue, "u256 out of range: %v", v)
	}
	return U256{v: new(big.Int).Set(v)}, nil
}

// Big returns a copy of the underlying integer
func (u U128) Big() *big.Int { return bigOrZero(u.v) }

// Big returns a copy of the underlying integer
func (u U256) Big() *big.Int { return bigOrZero(u.v) }

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Bytes returns a vector<u8> with one tagged U8 element per byte of b
func Bytes(b []byte) Vector {
	vec := make(Vector, len(b))
	for i, c := range b {
		vec[i] = U8(c)
	}
	return vec
}

// UTF8 returns the vector<u8> representation of s, the argument form Move
// entry functions use for string parameters.
func UTF8(s string) Vector {
	return Bytes([]byte(s))
}

// Encode serializes v with the canonical BCS value encoding
func Encode(v Value) ([]byte, error) {
	return appendValue(nil, v)
}

// EncodeAll serializes each value separately, producing the argument list of an entry function
func EncodeAll(values []Value) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for i, v := range values {
		encoded, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %d: %w", i, err)
		}
		out = append(out, encoded)
	}
	return out, nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch v := v.(type) {
	case Bool:
		return appendBCS(buf, bool(v))
	case U8:
		return appendBCS(buf, uint8(v))
	case U16:
		return appendBCS(buf, uint16(v))
	case U32:
		return appendBCS(buf, uint32(v))
	case U64:
		return appendBCS(buf, uint64(v))
	case U128:
		return appendLittleEndian(buf, v.Big(), 16), nil
	case U256:
		return appendLittleEndian(buf, v.Big(), 32), nil
	case Address:
		return append(buf, v[:]...), nil
	case Signer:
		return append(buf, v[:]...), nil
	case Vector:
		if err := checkHomogeneous(v); err != nil {
			return nil, err
		}
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		return appendValues(buf, v)
	case Struct:
		return appendValues(buf, v)
	case nil:
		return nil, encodingErrf(ErrInvalidValue, "nil value")
	default:
		return nil, encodingErrf(ErrInvalidValue, "unsupported value type %T", v)
	}
}

func appendValues(buf []byte, values []Value) ([]byte, error) {
	var err error
	for _, elem := range values {
		if buf, err = appendValue(buf, elem); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendBCS(buf []byte, v any) ([]byte, error) {
	encoded, err := bcs.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return append(buf, encoded...), nil
}

// appendLittleEndian writes v as a fixed-width little-endian integer
func appendLittleEndian(buf []byte, v *big.Int, width int) []byte {
	be := v.FillBytes(make([]byte, width))
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, be[i])
	}
	return buf
}

func checkHomogeneous(vec Vector) error {
	if len(vec) == 0 {
		return nil
	}
	ref := vec[0]
	for i, elem := range vec[1:] {
		merged, ok := unifyShape(ref, elem)
		if !ok {
			return encodingErrf(ErrInvalidValue, "vector element %d has a different type than element 0", i+1)
		}
		ref = merged
	}
	return nil
}

// unifyShape reports whether a and b encode the same Move type and returns the
// more specific of the two. An empty vector matches any vector.
func unifyShape(a, b Value) (Value, bool) {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return nil, false
	}
	switch av := a.(type) {
	case Vector:
		bv := b.(Vector)
		if len(av) == 0 {
			return bv, true
		}
		if len(bv) == 0 {
			return av, true
		}
		elem, ok := unifyShape(av[0], bv[0])
		if !ok {
			return nil, false
		}
		return Vector{elem}, true
	case Struct:
		bv := b.(Struct)
		if len(av) != len(bv) {
			return nil, false
		}
		merged := make(Struct, len(av))
		for i := range av {
			field, ok := unifyShape(av[i], bv[i])
			if !ok {
				return nil, false
			}
			merged[i] = field
		}
		return merged, true
	}
	return a, true
}

// JSONArgument converts v to the JSON form the node's view endpoint expects:
// 64 bit and wider integers as decimal strings, addresses as hex and
// vector<u8> as a 0x-prefixed hex string.
func JSONArgument(v Value) (any, error) {
	switch v := v.(type) {
	case Bool:
		return bool(v), nil
	case U8:
		return uint8(v), nil
	case U16:
		return uint16(v), nil
	case U32:
		return uint32(v), nil
	case U64:
		return fmt.Sprintf("%d", uint64(v)), nil
	case U128:
		return v.Big().String(), nil
	case U256:
		return v.Big().String(), nil
	case Address:
		return v.StringLong(), nil
	case Signer:
		return Address(v).StringLong(), nil
	case Vector:
		if raw, ok := vectorBytes(v); ok {
			return "0x" + hex.EncodeToString(raw), nil
		}
		out := make([]any, 0, len(v))
		for _, elem := range v {
			arg, err := JSONArgument(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, arg)
		}
		return out, nil
	case Struct:
		return nil, encodingErrf(ErrInvalidValue, "struct values cannot be passed as view arguments")
	default:
		return nil, encodingErrf(ErrInvalidValue, "unsupported value type %T", v)
	}
}

// vectorBytes returns the raw bytes of a non-empty vector<u8>
func vectorBytes(vec Vector) ([]byte, bool) {
	if len(vec) == 0 {
		return nil, false
	}
	raw := make([]byte, len(vec))
	for i, elem := range vec {
		b, ok := elem.(U8)
		if !ok {
			return nil, false
		}
		raw[i] = byte(b)
	}
	return raw, true
}
