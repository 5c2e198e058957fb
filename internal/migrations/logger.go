package migrations

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// gooseLogger routes goose output onto the cache's logger.
type gooseLogger struct {
	l *log.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level; goose does not get to exit the process.
func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
