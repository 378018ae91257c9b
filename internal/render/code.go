// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

const fence = "```"

// Code leaves prose untouched and highlights fenced code blocks. A fence
// that is still open (the stream has not closed it yet) is highlighted up
// to the end of the text.
type Code struct {
	// Style is a chroma style name; empty means monokai.
	Style string
}

// Render implements Renderer.
func (c Code) Render(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	inFence := false
	language := ""
	var block []string
	flush := func() {
		if len(block) > 0 {
			code := strings.Join(block, "\n")
			out = append(out, strings.TrimRight(HighlightCode(code, language, c.Style), "\n"))
		}
		block = block[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, fence) {
			if inFence {
				flush()
				inFence = false
			} else {
				inFence = true
				language = strings.TrimSpace(strings.TrimPrefix(trimmed, fence))
			}
			out = append(out, line)
			continue
		}
		if inFence {
			block = append(block, line)
			continue
		}
		out = append(out, line)
	}
	if inFence {
		flush()
	}
	return strings.Join(out, "\n")
}

// HighlightCode applies syntax highlighting to code using the chroma
// library. language may be empty, in which case it is guessed.
func HighlightCode(code, language, style string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	if style == "" {
		style = "monokai"
	}
	s := chromaStyles.Get(style)
	if s == nil {
		s = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, s, iterator); err != nil {
		return code
	}
	return buf.String()
}
