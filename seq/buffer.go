// Package seq provides immutable byte encodings of DNA sequences.
//
// A Buffer holds one sequence in either raw ASCII form or a packed
// 2-bit form (four bases per byte). Buffers never mutate after
// construction, which makes them safe to share across goroutines
// without locking.
package seq

import "fmt"

// Encoding identifies how a Buffer stores its bases.
type Encoding uint8

const (
	// EncodingRaw stores one uppercase ASCII base character per byte.
	EncodingRaw Encoding = iota
	// EncodingPacked stores four 2-bit base codes per byte (A=0, C=1,
	// G=2, T=3). Only pure-ACGT sequences use this encoding.
	EncodingPacked
)

// String returns the encoding tag used in diagnostics.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw-ascii"
	case EncodingPacked:
		return "packed-base-code"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// packThreshold is the minimum character length at which packing pays
// for itself. Short sequences stay raw to keep per-base access cheap.
const packThreshold = 1024

// CodeInvalid is returned by Code for bases outside ACGT.
const CodeInvalid = byte(0xFF)

// baseCode maps ASCII base characters (either case) to 2-bit codes.
var baseCode = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = CodeInvalid
	}
	t['A'], t['a'] = 0, 0
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3
	return t
}()

// codeBase maps 2-bit codes back to uppercase ASCII.
var codeBase = [4]byte{'A', 'C', 'G', 'T'}

// Buffer is an immutable encoded DNA sequence owned by a pool entry.
// All methods are safe for concurrent use.
type Buffer struct {
	id       string
	encoding Encoding
	charLen  int
	shared   bool
	data     []byte
}

// NewBuffer encodes text into a Buffer for the given identifier.
// Pure-ACGT sequences of at least 1024 bases are packed two bits per
// base; anything containing ambiguity codes (N and friends) or below
// the threshold is stored as uppercase ASCII. shared records whether
// the backing memory is handed out zero-copy or is a private copy;
// the bytes are identical either way.
func NewBuffer(id, text string, shared bool) *Buffer {
	n := len(text)
	pure := n >= packThreshold
	for i := 0; pure && i < n; i++ {
		if baseCode[text[i]] == CodeInvalid {
			pure = false
		}
	}

	b := &Buffer{id: id, charLen: n, shared: shared}
	if pure {
		b.encoding = EncodingPacked
		b.data = make([]byte, (n+3)/4)
		for i := 0; i < n; i++ {
			b.data[i>>2] |= baseCode[text[i]] << uint((i&3)*2)
		}
		return b
	}

	b.encoding = EncodingRaw
	b.data = make([]byte, n)
	for i := 0; i < n; i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b.data[i] = c
	}
	return b
}

// ID returns the owning sequence identifier.
func (b *Buffer) ID() string { return b.id }

// Len returns the logical character length of the sequence.
func (b *Buffer) Len() int { return b.charLen }

// ByteLen returns the encoded byte length.
func (b *Buffer) ByteLen() int { return len(b.data) }

// Encoding returns the storage encoding.
func (b *Buffer) Encoding() Encoding { return b.encoding }

// Shared reports whether the backing memory is shared zero-copy
// rather than a private copy.
func (b *Buffer) Shared() bool { return b.shared }

// Bytes returns the encoded backing bytes. Callers must treat the
// slice as read-only.
func (b *Buffer) Bytes() []byte { return b.data }

// Base returns the uppercase ASCII base at position i.
func (b *Buffer) Base(i int) byte {
	if b.encoding == EncodingPacked {
		return codeBase[(b.data[i>>2]>>uint((i&3)*2))&3]
	}
	return b.data[i]
}

// Code returns the 2-bit base code at position i, or CodeInvalid for
// bases outside ACGT.
func (b *Buffer) Code(i int) byte {
	if b.encoding == EncodingPacked {
		return (b.data[i>>2] >> uint((i&3)*2)) & 3
	}
	return baseCode[b.data[i]]
}

// AppendBases appends n uppercase ASCII bases starting at start to
// dst and returns the extended slice. The range must lie within the
// sequence.
func (b *Buffer) AppendBases(dst []byte, start, n int) []byte {
	if b.encoding == EncodingRaw {
		return append(dst, b.data[start:start+n]...)
	}
	for i := start; i < start+n; i++ {
		dst = append(dst, codeBase[(b.data[i>>2]>>uint((i&3)*2))&3])
	}
	return dst
}

// String materializes the full sequence as uppercase ASCII.
func (b *Buffer) String() string {
	if b.encoding == EncodingRaw {
		return string(b.data)
	}
	return string(b.AppendBases(make([]byte, 0, b.charLen), 0, b.charLen))
}
