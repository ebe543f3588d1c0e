package backend

import (
	"bytes"
	"fmt"
	"strings"
)

// Buffer is the private text buffer an emitter writes one unit into.
type Buffer struct {
	buf         bytes.Buffer
	indent      int
	unit        string
	atLineStart bool
}

// NewBuffer returns a buffer indenting with unit ("  ", "\t", ...).
func NewBuffer(unit string) *Buffer {
	return &Buffer{unit: unit, atLineStart: true}
}

// Write appends s, indenting at the start of each line.
func (b *Buffer) Write(s string) {
	for len(s) > 0 {
		if b.atLineStart {
			if s[0] != '\n' {
				b.buf.WriteString(strings.Repeat(b.unit, b.indent))
			}
			b.atLineStart = false
		}
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			b.buf.WriteString(s)
			return
		}
		b.buf.WriteString(s[:i+1])
		b.atLineStart = true
		s = s[i+1:]
	}
}

func (b *Buffer) Writef(format string, args ...any) {
	b.Write(fmt.Sprintf(format, args...))
}

// Line writes a formatted line terminated by a newline.
func (b *Buffer) Line(format string, args ...any) {
	b.Write(fmt.Sprintf(format, args...) + "\n")
}

func (b *Buffer) Newline() { b.Write("\n") }

func (b *Buffer) Indent() { b.indent++ }

func (b *Buffer) Dedent() {
	if b.indent > 0 {
		b.indent--
	}
}

func (b *Buffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *Buffer) String() string { return b.buf.String() }
func (b *Buffer) Len() int       { return b.buf.Len() }
