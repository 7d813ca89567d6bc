// Package canonjson produces deterministic, byte-identical JSON for the
// values the event log hashes and signs. encoding/json is not used for the
// tuple itself because Go map iteration order is not stable and the wire
// format must match byte-for-byte across implementations.
package canonjson

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Value is anything canonjson knows how to render. Implementations are
// provided for the primitives the event tuple needs; callers of richer
// payloads (table schemas, row content) fall back to Object/Array/Raw.
type Value interface {
	encode(buf *bytes.Buffer)
}

type String string

func (s String) encode(buf *bytes.Buffer) {
	encodeString(buf, string(s))
}

type Int64 int64

func (i Int64) encode(buf *bytes.Buffer) {
	buf.WriteString(strconv.FormatInt(int64(i), 10))
}

type Bool bool

func (b Bool) encode(buf *bytes.Buffer) {
	if b {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
}

// Null renders the JSON null literal.
type Null struct{}

func (Null) encode(buf *bytes.Buffer) { buf.WriteString("null") }

// Array renders an ordered, order-preserving JSON array.
type Array []Value

func (a Array) encode(buf *bytes.Buffer) {
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		v.encode(buf)
	}
	buf.WriteByte(']')
}

// Object renders a JSON object with keys sorted lexicographically, so the
// same logical object always serializes to the same bytes regardless of
// construction order.
type Object map[string]Value

func (o Object) encode(buf *bytes.Buffer) {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		o[k].encode(buf)
	}
	buf.WriteByte('}')
}

// Raw embeds already-canonical JSON bytes verbatim (used for hashes already
// rendered as lowercase hex strings).
type Raw string

func (r Raw) encode(buf *bytes.Buffer) { buf.WriteString(string(r)) }

// Marshal renders v to canonical JSON bytes.
func Marshal(v Value) []byte {
	buf := &bytes.Buffer{}
	v.encode(buf)
	return buf.Bytes()
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
