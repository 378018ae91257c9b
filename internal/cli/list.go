// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// Row is one line of `parley list` and /list.
type Row struct {
	Position  int       `json:"position"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// Rows lists the ledger newest first with 1-based positions.
func Rows(l *ledger.Ledger) []Row {
	active := l.Active()
	list := l.List()
	rows := make([]Row, 0, len(list))
	for i, conv := range list {
		rows = append(rows, Row{
			Position:  i + 1,
			ID:        conv.ID,
			Title:     conv.Title,
			Messages:  len(conv.Messages),
			CreatedAt: conv.CreatedAt,
			Active:    conv.ID == active,
		})
	}
	return rows
}

// PrintList writes rows as aligned columns fitted to width.
func PrintList(w io.Writer, rows []Row, now time.Time, width int) {
	if len(rows) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}

	// marker, position, id prefix, counts and age take about 40 columns
	titleWidth := max(width-40, 12)
	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(r.Title), titleWidth), titleWidth)
		line := fmt.Sprintf("%s %3d  %s  %s  %4d msg  %s",
			marker, r.Position, shortID(r.ID), title, r.Messages, util.RelativeTime(r.CreatedAt, now))
		if r.Active {
			line = ActiveStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// RESOLUTION
// =============================================================================

// minPrefix is the shortest id prefix Resolve accepts.
const minPrefix = 4

// Resolve finds a conversation by 1-based list position, full id, or a
// unique id prefix of at least four characters.
func Resolve(l *ledger.Ledger, ref string) (*model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if conv, ok := l.Get(ref); ok {
		return conv, nil
	}

	list := l.List()
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
		return nil, notFound(ref)
	}

	if len(ref) < minPrefix {
		return nil, notFound(ref)
	}
	var match *model.Conversation
	for _, conv := range list {
		if strings.HasPrefix(conv.ID, ref) {
			if match != nil {
				return nil, NewUsageError("id prefix %q matches more than one conversation", ref)
			}
			match = conv
		}
	}
	if match == nil {
		return nil, notFound(ref)
	}
	return match, nil
}

func notFound(ref string) error {
	return &ledger.ConversationError{Message: ledger.ErrConversationNotFound.Message, ID: ref}
}
