package httpserver

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/Skotchmaster/game_store/pkg/logging"
)

func itoa(v int) string { return strconv.Itoa(v) }

func testLogger() *slog.Logger { return logging.NewWithWriter(io.Discard, "error") }
