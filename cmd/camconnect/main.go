package main

import (
	"log/slog"

	"github.com/AnujaKalahara99/camconnectit/internal/cli"
	"github.com/AnujaKalahara99/camconnectit/internal/logging"
)

func main() {
	logging.Init(slog.LevelWarn)
	cli.Execute()
}
