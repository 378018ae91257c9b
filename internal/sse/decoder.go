// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// FRAMING CONSTANTS
// =============================================================================

// Delimiter separates frames on the wire.
const Delimiter = "\n\n"

// =============================================================================
// DECODER
// =============================================================================

// Decoder splits a byte stream into SSE frames. It is owned by a single
// streaming session and is not safe for concurrent use.
type Decoder struct {
	utf8      transform.Transformer
	pending   []byte // tail of a multi-byte character awaiting its next bytes
	remainder string // text after the last delimiter
}

// NewDecoder returns a decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{utf8: unicode.UTF8.NewDecoder()}
}

// Feed decodes chunk, appends it to the remainder and returns every frame
// completed by it, in order. A chunk without a delimiter returns nothing.
func (d *Decoder) Feed(chunk []byte) []string {
	return d.split(d.decode(chunk, false))
}

// Flush ends the stream. Pending bytes of an incomplete character decode to
// U+FFFD, and a non-blank remainder is returned as the final frame. The
// decoder is reset afterwards.
func (d *Decoder) Flush() []string {
	frames := d.split(d.decode(nil, true))
	if strings.TrimSpace(d.remainder) != "" {
		frames = append(frames, strings.TrimRight(d.remainder, "\r\n"))
	}
	d.Reset()
	return frames
}

// Remainder returns the partial frame buffered after the last delimiter.
// It is the empty string when the input so far ended on a delimiter.
func (d *Decoder) Remainder() string {
	return d.remainder
}

// Reset discards all buffered state.
func (d *Decoder) Reset() {
	d.utf8.Reset()
	d.pending = nil
	d.remainder = ""
}

// decode runs chunk through the stateful UTF-8 transformer. Invalid
// sequences come out as U+FFFD; an incomplete trailing sequence is held in
// pending unless atEOF.
func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil

	// PERFORMANCE: one replacement char (3 bytes) per input byte is the
	// worst case, so a single pass normally suffices.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	var out strings.Builder
	for {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		switch {
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
		}
		return out.String()
	}
}

// split appends text to the remainder and cuts every complete frame off the
// front. CRLF line endings are folded to LF first; a trailing lone CR stays
// in the remainder until the next chunk shows what follows it.
func (d *Decoder) split(text string) []string {
	buf := d.remainder + text
	if strings.Contains(buf, "\r\n") {
		buf = strings.ReplaceAll(buf, "\r\n", "\n")
	}

	parts := strings.Split(buf, Delimiter)
	d.remainder = parts[len(parts)-1]
	if len(parts) == 1 {
		return nil
	}
	return parts[:len(parts)-1]
}
