package moderation

import (
	"chat-room/errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator([]string{"badger", "snake", "mushroom"}, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word keeps spacing",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Repeated word",
			input:    "snake snake",
			expected: "***** *****",
			words:    []string{"snake", "snake"},
		},
		{
			name:     "Leet speak and inner punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "I love mushroom!",
			expected: "I love ********!",
			words:    []string{"mushroom"},
		},
		{
			name:     "Accents around a match",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Clean text",
			input:    "entered the room",
			expected: "entered the room",
			words:    nil,
		},
		{
			name:     "Empty text",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, words := mod.Censor(tt.input)
			req.Equal(tt.expected, text)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_IgnoresNoiseWords(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mod, err := NewModerator([]string{"...", ",,,", "", "badger", "BADGER"}, replacementChar, log)
	req.NoError(err)

	text, words := mod.Censor("Hello ...")
	req.Equal("Hello ...", text)
	req.Nil(words)

	text, words = mod.Censor("The badger is safe")
	req.Equal("The ****** is safe", text)
	req.Equal([]string{"badger"}, words)
}

func TestModerator_NoWords(t *testing.T) {
	req := require.New(t)
	_, err := NewModerator([]string{"", "...", " - "}, replacementChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.ErrorIs(err, errors.ErrEmptyWords)
}
