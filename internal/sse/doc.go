// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse turns a streamed completion body into content deltas.
//
// Two stages run back to back on every chunk read from the transport:
//
//   - Decoder: incremental UTF-8 decode plus "\n\n" framing. Bytes of a
//     character split across reads are carried to the next read, and the
//     partial frame at the end of a chunk is kept as the remainder.
//   - Extract: classifies one frame as a content delta, the [DONE]
//     sentinel, an ignorable frame, or a malformed payload.
//
// # Usage
//
//	dec := sse.NewDecoder()
//	for _, frame := range dec.Feed(chunk) {
//	    switch ev := sse.Extract(frame); ev.Kind {
//	    case sse.KindDelta:
//	        text += ev.Content
//	    case sse.KindDone:
//	        return text
//	    case sse.KindMalformed:
//	        log.Printf("SSE_FRAME_MALFORMED | err=%v", ev.Err)
//	    }
//	}
package sse
