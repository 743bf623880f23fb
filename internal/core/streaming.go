package core

// streaming.go cleans up source bytes before they reach the CSV parser.
//
// Exports from spreadsheet tools often start with a UTF-8 BOM, which would
// otherwise end up glued to the first column name, and occasionally carry
// stray Latin-1 bytes. Both are handled on the fly without buffering the file.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a leading UTF-8 BOM, if any, on first read.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces each byte that is not part of a valid UTF-8
// sequence with '?'. Valid multi-byte runes pass through unchanged, even
// when they straddle two reads of the underlying reader.
type UTF8Sanitizer struct {
	r *bufio.Reader
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &UTF8Sanitizer{r: br}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	for n < len(p) {
		r, size, err := s.r.ReadRune()
		if err != nil {
			return n, err
		}

		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
		} else {
			if utf8.RuneLen(r) > len(p)-n {
				// Leave the rune for the next call.
				_ = s.r.UnreadRune()
				if n == 0 {
					return 0, io.ErrShortBuffer
				}
				return n, nil
			}
			n += utf8.EncodeRune(p[n:], r)
		}

		// Hand back what we have rather than block on the source.
		if s.r.Buffered() == 0 {
			break
		}
	}
	return n, nil
}

// CountingReader counts the bytes read through it.
type CountingReader struct {
	r io.Reader
	n int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// BytesRead returns the number of raw bytes consumed so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n
}

// WrapSource applies BOM skipping and UTF-8 sanitization to a raw source.
// The returned counter sees the raw, unmodified byte stream.
func WrapSource(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewUTF8Sanitizer(NewBOMSkippingReader(counter)), counter
}
