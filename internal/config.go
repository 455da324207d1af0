package internal

import (
	"chat-room/errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	BadgerDriver = "badger"
	SQLiteDriver = "sqlite"
)

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=5000"`
	GrpcPort        int           `env:"GRPC_PORT,default=5001"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=1m"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteFilepath string `env:"SQLITE_FILEPATH,default=./data/chat.db"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`

	SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	InactivityThreshold time.Duration `env:"INACTIVITY_THRESHOLD,default=10s"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Words splits the comma separated CENSORED_WORDS list, blanks dropped.
func (c Config) Words() []string {
	return lo.FilterMap(strings.Split(c.CensoredWords, ","), func(word string, _ int) (string, bool) {
		word = strings.TrimSpace(word)
		return word, word != ""
	})
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT got %q", errors.ErrInvalidCharacter, str)
	}
	return r[0], nil
}
