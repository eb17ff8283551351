package api

import (
	"bytes"
	"encoding/json"
)

var dataPrefix = []byte("data: ")

// decoder turns raw body bytes into chunks. It keeps the unterminated tail
// of the body between reads, so a record or a multi-byte rune split across
// two reads is decoded once the rest arrives. '\n' never occurs inside a
// UTF-8 multi-byte sequence, so splitting on it is safe.
type decoder struct {
	buf     []byte
	emit    func(string)
	emitted int
}

func newDecoder(emit func(string)) *decoder {
	return &decoder{emit: emit}
}

// feed appends p and processes every complete line.
func (d *decoder) feed(p []byte) {
	d.buf = append(d.buf, p...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		d.line(d.buf[:i])
		d.buf = d.buf[i+1:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
}

// flush processes the residual tail as the final line.
func (d *decoder) flush() {
	if len(d.buf) > 0 {
		d.line(d.buf)
	}
	d.buf = nil
}

func (d *decoder) line(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	var f frame
	if err := json.Unmarshal(line[len(dataPrefix):], &f); err != nil {
		return
	}
	if f.Chunk == "" {
		return
	}
	d.emitted++
	d.emit(f.Chunk)
}
