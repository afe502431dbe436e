package esp

import (
	"log/slog"

	"i4.energy/across/esp8266/at"
)

// LineLogger is a debug echo for module output. Bytes written to it are
// grouped into lines with at.Splitter and each complete line is logged at
// debug level. Use it as Config.Observer.
type LineLogger struct {
	logger *slog.Logger
	buf    []byte
	max    int
}

// NewLineLogger returns a LineLogger writing to logger.
func NewLineLogger(logger *slog.Logger) *LineLogger {
	return &LineLogger{logger: logger, max: 4096}
}

// Write never fails.
func (l *LineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		advance, token, _ := at.Splitter(l.buf, false)
		if advance == 0 {
			break
		}
		if len(token) > 0 {
			l.logger.Debug("rx", "line", string(token))
		}
		l.buf = l.buf[advance:]
	}
	if len(l.buf) >= l.max {
		// No line ending in sight: log what we have and start over
		l.logger.Debug("rx", "line", string(l.buf))
		l.buf = l.buf[:0]
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (l *LineLogger) Flush() {
	if len(l.buf) > 0 {
		l.logger.Debug("rx", "line", string(l.buf))
		l.buf = l.buf[:0]
	}
}
