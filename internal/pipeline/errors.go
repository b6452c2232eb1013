package pipeline

import (
	"errors"
	"fmt"

	"pult/internal/entity"
)

// ErrCustomIDRequired — схема требует явный id, а вызывающий его не дал.
var ErrCustomIDRequired = errors.New("schema requires an explicit id")

// ErrCustomIDInvalid — id не входит в объявленный схемой список допустимых.
var ErrCustomIDInvalid = errors.New("id is not in the allowed list")

// ErrNotAllowed — у принципала нет права на эту мутацию.
var ErrNotAllowed = errors.New("operation is not allowed")

// PreSaveAbortedError — OnPreSave вернул ошибку; запись не начиналась,
// внешнее состояние не менялось.
type PreSaveAbortedError struct {
	Err error
}

func (e *PreSaveAbortedError) Error() string { return fmt.Sprintf("save aborted by pre-save hook: %v", e.Err) }
func (e *PreSaveAbortedError) Unwrap() error { return e.Err }

// PreDeleteAbortedError — OnPreDelete вернул ошибку; удаление не начиналось.
type PreDeleteAbortedError struct {
	Err error
}

func (e *PreDeleteAbortedError) Error() string {
	return fmt.Sprintf("delete aborted by pre-delete hook: %v", e.Err)
}
func (e *PreDeleteAbortedError) Unwrap() error { return e.Err }

// ValidationError — значения нарушают правила схемы, проверяемые по
// хранилищу (unique/readonly/ref). Запись не начиналась.
type ValidationError struct {
	Issues []entity.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", e.Issues[0].Message)
}

// Conflict — есть ли среди проблем конфликт целостности (unique/ref);
// такие отдаются как 409, остальные — 400.
func (e *ValidationError) Conflict() bool {
	for _, is := range e.Issues {
		if is.Code == entity.IssueUnique || is.Code == entity.IssueRefNotFound {
			return true
		}
	}
	return false
}

// PersistenceError — внешняя запись/удаление упали. Судьба мутации ядру
// известна ровно настолько, насколько источник сообщил.
type PersistenceError struct {
	Op         string // "set" | "delete"
	Collection string
	ID         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }
