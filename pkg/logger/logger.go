package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New 構造化ロガーを生成する
// formatが"console"なら人間可読、それ以外はJSONで出力する。
// levelが解釈できない場合はinfoにフォールバックする。
func New(level, format string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}
