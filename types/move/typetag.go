package move

import (
	"strings"
)

// TypeTag is a Move type argument. It is a BCS enum: exactly one field is set
// and the field position is the variant index on the wire.
type TypeTag struct {
	Bool    *struct{}
	U8      *struct{}
	U64     *struct{}
	U128    *struct{}
	Address *struct{}
	Signer  *struct{}
	Vector  *TypeTag
	Struct  *StructTag
	U16     *struct{}
	U32     *struct{}
	U256    *struct{}
}

// IsBcsEnum marks TypeTag as a BCS enum
func (TypeTag) IsBcsEnum() {}

// StructTag names a struct type and its generic instantiation
type StructTag struct {
	Address  Address
	Module   Identifier
	Name     Identifier
	TypeArgs []TypeTag
}

var unit = &struct{}{}

// Primitive type tags
var (
	TypeTagBool    = TypeTag{Bool: unit}
	TypeTagU8      = TypeTag{U8: unit}
	TypeTagU16     = TypeTag{U16: unit}
	TypeTagU32     = TypeTag{U32: unit}
	TypeTagU64     = TypeTag{U64: unit}
	TypeTagU128    = TypeTag{U128: unit}
	TypeTagU256    = TypeTag{U256: unit}
	TypeTagAddress = TypeTag{Address: unit}
	TypeTagSigner  = TypeTag{Signer: unit}
)

var primitiveTypeTags = map[string]TypeTag{
	"bool":    TypeTagBool,
	"u8":      TypeTagU8,
	"u16":     TypeTagU16,
	"u32":     TypeTagU32,
	"u64":     TypeTagU64,
	"u128":    TypeTagU128,
	"u256":    TypeTagU256,
	"address": TypeTagAddress,
	"signer":  TypeTagSigner,
}

// VectorOf returns vector<elem>
func VectorOf(elem TypeTag) TypeTag {
	return TypeTag{Vector: &elem}
}

// StructOf returns the struct type tag
func StructOf(tag StructTag) TypeTag {
	return TypeTag{Struct: &tag}
}

// ParseTypeTag parses the textual form of a type such as "u64", "vector<u8>"
// or "0x1::coin::Coin<0x1::aptos_coin::AptosCoin>".
func ParseTypeTag(s string) (TypeTag, error) {
	p := &typeTagParser{input: s, src: strings.TrimSpace(s)}

	tag, err := p.parse()
	if err != nil {
		return TypeTag{}, err
	}
	if p.pos != len(p.src) {
		return TypeTag{}, encodingErr(ErrInvalidTypeTag, s)
	}
	return tag, nil
}

// ParseTypeTags parses every entry of in, preserving order
func ParseTypeTags(in []string) ([]TypeTag, error) {
	tags := make([]TypeTag, 0, len(in))
	for _, s := range in {
		tag, err := ParseTypeTag(s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Validate checks every identifier reachable from the tag and that exactly one variant is set
func (t TypeTag) Validate() error {
	set := 0
	for _, p := range []*struct{}{t.Bool, t.U8, t.U16, t.U32, t.U64, t.U128, t.U256, t.Address, t.Signer} {
		if p != nil {
			set++
		}
	}
	if t.Vector != nil {
		set++
		if err := t.Vector.Validate(); err != nil {
			return err
		}
	}
	if t.Struct != nil {
		set++
		if err := t.Struct.Validate(); err != nil {
			return err
		}
	}
	if set != 1 {
		return encodingErrf(ErrInvalidTypeTag, "type tag must have exactly one variant, has %d", set)
	}
	return nil
}

// Validate checks the module and struct names and the type arguments
func (s StructTag) Validate() error {
	if err := s.Module.Validate(); err != nil {
		return err
	}
	if err := s.Name.Validate(); err != nil {
		return err
	}
	for _, arg := range s.TypeArgs {
		if err := arg.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t TypeTag) String() string {
	switch {
	case t.Vector != nil:
		return "vector<" + t.Vector.String() + ">"
	case t.Struct != nil:
		return t.Struct.String()
	}
	for name, prim := range primitiveTypeTags {
		if prim.sameVariant(t) {
			return name
		}
	}
	return "<invalid>"
}

func (t TypeTag) sameVariant(o TypeTag) bool {
	return (t.Bool != nil) == (o.Bool != nil) &&
		(t.U8 != nil) == (o.U8 != nil) &&
		(t.U16 != nil) == (o.U16 != nil) &&
		(t.U32 != nil) == (o.U32 != nil) &&
		(t.U64 != nil) == (o.U64 != nil) &&
		(t.U128 != nil) == (o.U128 != nil) &&
		(t.U256 != nil) == (o.U256 != nil) &&
		(t.Address != nil) == (o.Address != nil) &&
		(t.Signer != nil) == (o.Signer != nil) &&
		t.Vector == nil && o.Vector == nil &&
		t.Struct == nil && o.Struct == nil
}

func (s StructTag) String() string {
	var b strings.Builder
	b.WriteString(s.Address.String())
	b.WriteString("::")
	b.WriteString(string(s.Module))
	b.WriteString("::")
	b.WriteString(string(s.Name))
	if len(s.TypeArgs) > 0 {
		b.WriteByte('<')
		for i, arg := range s.TypeArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.String())
		}
		b.WriteByte('>')
	}
	return b.String()
}

// typeTagParser is a small recursive descent parser over the type grammar
type typeTagParser struct {
	input string
	src   string
	pos   int
}

func (p *typeTagParser) parse() (TypeTag, error) {
	p.skipSpace()
	word := p.word()
	if word == "" {
		return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
	}

	if word == "vector" {
		if !p.consume('<') {
			return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
		}
		elem, err := p.parse()
		if err != nil {
			return TypeTag{}, err
		}
		if !p.consume('>') {
			return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
		}
		return VectorOf(elem), nil
	}

	if prim, ok := primitiveTypeTags[word]; ok {
		return prim, nil
	}

	// Struct: address::module::name[<args>]
	addr, err := ParseAddress(word)
	if err != nil {
		return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
	}
	if !p.consumeSep() {
		return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
	}
	module, err := ParseIdentifier(p.word())
	if err != nil {
		return TypeTag{}, err
	}
	if !p.consumeSep() {
		return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
	}
	name, err := ParseIdentifier(p.word())
	if err != nil {
		return TypeTag{}, err
	}

	tag := StructTag{Address: addr, Module: module, Name: name}
	if p.consume('<') {
		for {
			arg, err := p.parse()
			if err != nil {
				return TypeTag{}, err
			}
			tag.TypeArgs = append(tag.TypeArgs, arg)
			if p.consume(',') {
				continue
			}
			if p.consume('>') {
				break
			}
			return TypeTag{}, encodingErr(ErrInvalidTypeTag, p.input)
		}
	}
	return StructOf(tag), nil
}

func (p *typeTagParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !isASCIILetter(c) && !isDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeTagParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		p.skipSpace()
		return true
	}
	return false
}

func (p *typeTagParser) consumeSep() bool {
	if strings.HasPrefix(p.src[p.pos:], "::") {
		p.pos += 2
		return true
	}
	return false
}

func (p *typeTagParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}
