package app

import (
	"io"
	"strings"

	"go.uber.org/zap"
)

func nopLog() *zap.Logger { return zap.NewNop() }

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
