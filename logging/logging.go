// Package logging routes the standard logger and gin's request log to stderr
// and, when configured, a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"

	"taskhook/config"
)

// Setup installs the log writer and returns a closer for the rotated file.
func Setup(cfg config.LogConfig) (io.Writer, func() error) {
	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
		closeFn = rotated.Close
	}

	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = out
	return out, closeFn
}

// New returns a logger writing to out with a component prefix.
func New(out io.Writer, component string) *log.Logger {
	return log.New(out, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}
