package notebooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrMalformedDocument is returned when content cannot be read as a notebook,
// even after the textual fallbacks have been applied.
var ErrMalformedDocument = errors.New("malformed notebook document")

// Parse reads a notebook document. The root must be a JSON object.
func Parse(data []byte) (*Value, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformedDocument)
	}
	if !json.Valid(data) {
		// json.Valid does not say where; a throwaway Unmarshal does.
		var scratch any
		err := json.Unmarshal(data, &scratch)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedDocument)
	}
	if v.kind != Object {
		return nil, fmt.Errorf("%w: root is %s, want object", ErrMalformedDocument, v.kind)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := ObjectValue()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				// Append rather than Set so duplicate keys survive a rewrite.
				obj.members = append(obj.members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := ArrayValue()
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.items = append(arr.items, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	}
	return nil, fmt.Errorf("unexpected token %T", tok)
}

// Marshal encodes v without insignificant whitespace.
func Marshal(v *Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "", "")
	return buf.Bytes()
}

// MarshalIndent encodes v with one member or element per line, each level
// indented by indent, followed by a trailing newline. This is the layout
// Jupyter itself writes, so a repaired notebook only diffs where it changed.
func MarshalIndent(v *Value, indent string) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v, "\n", indent)
	buf.WriteByte('\n')
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, v *Value, prefix, indent string) {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		writeString(buf, v.s)
	case Array:
		if len(v.items) == 0 {
			buf.WriteString("[]")
			return
		}
		inner := prefix + indent
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(inner)
			writeValue(buf, item, inner, indent)
		}
		buf.WriteString(prefix)
		buf.WriteByte(']')
	case Object:
		if len(v.members) == 0 {
			buf.WriteString("{}")
			return
		}
		inner := prefix + indent
		sep := ":"
		if prefix != "" {
			sep = ": "
		}
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(inner)
			writeString(buf, m.Key)
			buf.WriteString(sep)
			writeValue(buf, m.Value, inner, indent)
		}
		buf.WriteString(prefix)
		buf.WriteByte('}')
	}
}

// writeString quotes s with the minimum escaping JSON needs. Markup and line
// or paragraph separators are written as they are, so sources and outputs
// read the same after a rewrite.
func writeString(buf *bytes.Buffer, s string) {
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
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
