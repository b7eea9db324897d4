package logger

import (
	"io"
	"log"
)

func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

func Default() *log.Logger {
	return log.Default()
}

// ForCommand returns a logger writing to w, prefixed with the command name.
func ForCommand(w io.Writer, command string) *log.Logger {
	return log.New(w, "["+command+"] ", log.LstdFlags)
}
