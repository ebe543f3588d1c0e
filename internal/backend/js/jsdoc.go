package js

import (
	"strings"

	"github.com/efebarandurmaz/kiln/internal/backend"
)

// DocEmitter writes JSDoc blocks through the owning emitter's buffer.
type DocEmitter struct {
	buf     *backend.Buffer
	enabled bool
	lines   []string
}

func (d *DocEmitter) Begin() {
	d.lines = d.lines[:0]
}

// Text adds free-form documentation, one doc line per source line.
func (d *DocEmitter) Text(doc string) {
	if doc == "" {
		return
	}
	d.lines = append(d.lines, strings.Split(doc, "\n")...)
}

func (d *DocEmitter) Tag(name, value string) {
	if value == "" {
		d.lines = append(d.lines, "@"+name)
		return
	}
	d.lines = append(d.lines, "@"+name+" "+value)
}

// End flushes the block. Nothing is written for an empty block or when
// JSDoc output is disabled.
func (d *DocEmitter) End() {
	if !d.enabled || len(d.lines) == 0 {
		return
	}
	d.buf.Write("/**\n")
	for _, l := range d.lines {
		if l == "" {
			d.buf.Write(" *\n")
			continue
		}
		d.buf.Write(" * " + l + "\n")
	}
	d.buf.Write(" */\n")
}
