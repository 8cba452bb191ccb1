package gateway

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/unicode"
)

var zlibSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// inflateBufSize covers the largest flush the inflater can return at once
// (its 32KB window) with room to spare.
const inflateBufSize = 64 * 1024

// Decompressor inflates a zlib-stream gateway connection. All messages on one
// socket share a single zlib context, so a new Decompressor (or Reset) is
// needed for every socket.
type Decompressor struct {
	input bytes.Buffer
	zr    io.ReadCloser
	buf   []byte
	out   bytes.Buffer
}

// NewDecompressor creates a Decompressor.
func NewDecompressor() *Decompressor {
	return &Decompressor{buf: make([]byte, inflateBufSize)}
}

// Write feeds one binary frame. When the frame completes a message, Write
// returns it (UTF-8, invalid sequences replaced) with complete set.
func (d *Decompressor) Write(chunk []byte) (msg []byte, complete bool, err error) {
	d.input.Write(chunk)

	if !bytes.HasSuffix(chunk, zlibSuffix) {
		return nil, false, nil
	}

	if d.zr == nil {
		// bytes.Buffer is an io.ByteReader, so the inflater consumes exactly
		// what it needs and never reads ahead into the next message.
		zr, err := zlib.NewReader(&d.input)
		if err != nil {
			d.input.Reset()
			return nil, false, &ProtocolError{Reason: "zlib header", Err: err}
		}
		d.zr = zr
	}

	d.out.Reset()
	// Reading past the flush marker on an empty input would leave the
	// inflater in a sticky unexpected-EOF state, so stop as soon as input is
	// consumed.
	for d.input.Len() > 0 {
		n, err := d.zr.Read(d.buf)
		d.out.Write(d.buf[:n])
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			d.input.Reset()
			return nil, false, &ProtocolError{Reason: "inflate", Err: err}
		}
		if n == 0 {
			break
		}
	}

	decoded, err := unicode.UTF8.NewDecoder().Bytes(d.out.Bytes())
	if err != nil {
		return nil, false, &ProtocolError{Reason: "decode utf-8", Err: err}
	}
	return decoded, true, nil
}

// Reset discards all stream state.
func (d *Decompressor) Reset() {
	if d.zr != nil {
		d.zr.Close()
		d.zr = nil
	}
	d.input.Reset()
	d.out.Reset()
}
