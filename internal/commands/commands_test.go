// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NotACommand(t *testing.T) {
	p := NewParser(NewRegistry())
	res := p.Parse("what is 2+2?")
	assert.False(t, res.IsCommand)
	assert.Nil(t, res.Command)
	assert.NoError(t, res.Error)
}

func TestParse(t *testing.T) {
	p := NewParser(NewRegistry())

	tests := []struct {
		input   string
		command string
		args    []string
		raw     string
	}{
		{"/new", New, nil, ""},
		{"  /n  ", New, nil, ""},
		{"/open 2", Open, []string{"2"}, "2"},
		{"/rename Quantum  notes", Rename, []string{"Quantum", "notes"}, "Quantum  notes"},
		{`/rename "a b" c`, Rename, []string{"a b", "c"}, `"a b" c`},
		{"/export yaml", Export, []string{"yaml"}, "yaml"},
		{"/q", Quit, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := p.Parse(tt.input)
			require.True(t, res.IsCommand)
			require.NoError(t, res.Error)
			require.NotNil(t, res.Command)
			assert.Equal(t, tt.command, res.Command.Name)
			assert.Equal(t, tt.args, res.Args)
			assert.Equal(t, tt.raw, res.RawArgs)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	p := NewParser(NewRegistry())

	res := p.Parse("/frobnicate")
	var unknown *UnknownCommandError
	require.True(t, errors.As(res.Error, &unknown))
	assert.Equal(t, "/frobnicate", unknown.Name)

	for _, input := range []string{"/open", "/open zero", "/open 0", "/rename", "/export html"} {
		res := p.Parse(input)
		var verr *ValidationError
		assert.True(t, errors.As(res.Error, &verr), input)
	}
}

func TestPosition(t *testing.T) {
	assert.Equal(t, 3, Position([]string{"3"}, 0))
	assert.Equal(t, 0, Position(nil, 0))
	assert.Equal(t, 0, Position([]string{"x"}, 0))
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"it's", "fine"}, ParseArgs(`"it's" fine`))
	assert.Equal(t, []string{`say "hi"`}, ParseArgs(`'say "hi"'`))
}

func TestComplete(t *testing.T) {
	c := NewCompleter(NewRegistry())
	c.ConversationsFn = func() int { return 12 }

	assert.Equal(t, []string{"/delete"}, c.Complete("/de"))
	assert.Empty(t, c.Complete("/zz"))
	assert.Equal(t, []string{"/export yaml", "/export yml"}, c.Complete("/export y"))
	assert.Equal(t, []string{"/open 1", "/open 10", "/open 11", "/open 12"}, c.Complete("/open 1"))
	assert.Nil(t, c.Complete("/rename x"))
	assert.Nil(t, c.Complete("hello"))
	assert.Len(t, c.Complete("/"), 9)
}
