package clog

import "log/slog"

type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

// Slog maps the level onto slog's scale.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	}
	return slog.LevelError
}

// HTTPStatusToLevel picks how loudly a response is logged. Client
// disconnects (499) are not worth a warning.
func HTTPStatusToLevel(status int) Level {
	switch {
	case status >= 100 && status < 400, status == 499:
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	}
	return LevelError
}
