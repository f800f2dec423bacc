// internal/dxlink/errors.go
package dxlink

import (
	"errors"
	"fmt"
)

// ErrNoHandlers возвращается из New, если не задан ни один обработчик.
var ErrNoHandlers = errors.New("dxlink: at least one feed event handler must be provided")

// ErrAuthTimeout возвращается из Open, если сервер не авторизовал
// соединение за отведённое время.
var ErrAuthTimeout = errors.New("dxlink: authorization timed out")

// StreamerError — ERROR-фрейм от сервера; фатален для приёма.
type StreamerError struct {
	Code    string // поле "error" фрейма
	Message string // поле "message" фрейма
}

func (e *StreamerError) Error() string {
	return fmt.Sprintf("dxlink: server error %s: %s", e.Code, e.Message)
}

// TransportError — невосстановимая ошибка транспорта или разбора фрейма.
type TransportError struct {
	Op  string // "read" | "write" | "parse"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dxlink: transport %s: %v", e.Op, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }
