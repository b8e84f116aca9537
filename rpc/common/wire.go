package common

import (
	"fmt"
	"google.golang.org/protobuf/encoding/protowire"
	"math"
	"sort"
)

// --------------------------------------------------------------------------
// Protobuf wire helpers
// --------------------------------------------------------------------------

// The gateway speaks protobuf (proto3) on the payload level. The messages in this package
// encode themselves field by field with protowire, so no generated code is needed.
// Scalar fields with their zero value are omitted, repeated fields emit every element.

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStrings(b []byte, num protowire.Number, vs []string) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, v)
	}
	return b
}

func appendBytesList(b []byte, num protowire.Number, vs [][]byte) []byte {
	for _, v := range vs {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, v)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	// negative int32 values are sign extended to 64 bit like protoc does
	return appendVarint(b, num, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// appendEmbedded appends a length delimited sub message produced by enc
func appendEmbedded(b []byte, num protowire.Number, enc func(b []byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, enc(nil))
}

// sortedKeys returns the keys of a map in ascending order, so encoded maps are deterministic
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// appendMap appends a proto map<string, V>. Each entry is a sub message with key=1 and value=2.
func appendMap[V any](b []byte, num protowire.Number, m map[string]V, value func(b []byte, v V) []byte) []byte {
	for _, k := range sortedKeys(m) {
		v := m[k]
		b = appendEmbedded(b, num, func(e []byte) []byte {
			e = protowire.AppendTag(e, 1, protowire.BytesType)
			e = protowire.AppendString(e, k)
			return value(e, v)
		})
	}
	return b
}

// --------------------------------------------------------------------------
// Field reader
// --------------------------------------------------------------------------

// fieldReader iterates the fields of an encoded message.
// The first error stops the iteration and is reported by err.
type fieldReader struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func newFieldReader(b []byte) *fieldReader {
	return &fieldReader{b: b}
}

// next advances to the next field
func (r *fieldReader) next() bool {
	if r.err != nil || len(r.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		r.fail(n)
		return false
	}
	r.b = r.b[n:]
	r.num, r.typ = num, typ
	return true
}

func (r *fieldReader) fail(n int) {
	r.err = fmt.Errorf("%w: %v", ErrProtocol, protowire.ParseError(n))
}

func (r *fieldReader) expect(typ protowire.Type) bool {
	if r.typ != typ {
		r.err = fmt.Errorf("%w: field %d has wire type %d, expected %d", ErrProtocol, r.num, r.typ, typ)
		return false
	}
	return true
}

// skip discards the current field
func (r *fieldReader) skip() {
	n := protowire.ConsumeFieldValue(r.num, r.typ, r.b)
	if n < 0 {
		r.fail(n)
		return
	}
	r.b = r.b[n:]
}

func (r *fieldReader) bytes() []byte {
	if !r.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.fail(n)
		return nil
	}
	r.b = r.b[n:]
	return append([]byte{}, v...)
}

func (r *fieldReader) string() string {
	return string(r.bytes())
}

func (r *fieldReader) varint() uint64 {
	if !r.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *fieldReader) int32() int32 {
	return int32(r.varint())
}

func (r *fieldReader) bool() bool {
	return r.varint() != 0
}

func (r *fieldReader) double() float64 {
	if !r.expect(protowire.Fixed64Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed64(r.b)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.b = r.b[n:]
	return math.Float64frombits(v)
}

// embedded reads a sub message and hands its fields to fn
func (r *fieldReader) embedded(fn func(sub *fieldReader)) {
	v := r.bytes()
	if r.err != nil {
		return
	}
	sub := newFieldReader(v)
	fn(sub)
	if sub.err != nil {
		r.err = sub.err
	}
}

// mapEntry reads one entry of a proto map<string, V>
func (r *fieldReader) mapEntry(value func(sub *fieldReader)) (key string) {
	r.embedded(func(sub *fieldReader) {
		for sub.next() {
			switch sub.num {
			case 1:
				key = sub.string()
			case 2:
				value(sub)
			default:
				sub.skip()
			}
		}
	})
	return key
}
