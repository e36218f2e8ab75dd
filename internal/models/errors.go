package models

import "errors"

var (
	// ErrUnavailable: данных нет (пустой ответ, битые поля). Символ пропускается.
	ErrUnavailable = errors.New("data unavailable")
	// ErrNotFound: ордер/позиция уже не существует на бирже.
	ErrNotFound = errors.New("not found")
	// ErrCloseUnverified: закрытие отправлено, но биржа всё ещё показывает позицию.
	ErrCloseUnverified = errors.New("close unverified")
)
