package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"pult/internal/auth"
	"pult/internal/datasource"
	"pult/internal/entity"
	"pult/internal/schema"
)

// DeleteState — состояние конечного автомата удаления.
type DeleteState string

const (
	DeleteIdle        DeleteState = "idle"
	DeletePreDeleting DeleteState = "pre_deleting"
	DeleteDeleting    DeleteState = "deleting"
	DeleteSucceeded   DeleteState = "succeeded"
	DeleteFailed      DeleteState = "failed"
	DeleteAborted     DeleteState = "aborted"
)

// DeleteRequest — одно удаление одной сущности. Та же кооперативная
// дисциплина, что и у сохранения: один запрос в полёте на сущность.
type DeleteRequest struct {
	Schema     *schema.EntitySchema
	Collection string
	Entity     *entity.Entity
	Access     *auth.Controller
}

type DeleteResult struct {
	State DeleteState
}

// Deleter гоняет удаление через PreDeleting -> Deleting.
type Deleter struct {
	Source datasource.Source
	Log    zerolog.Logger
}

// Delete выполняет пайплайн удаления.
//
// OnPreDelete — валидационный гейт, не трансформация: его ошибка
// прерывает удаление до обращения к хранилищу. OnDelete зовётся строго
// после успешного удаления, best-effort. Ретраев нет — политика ретраев
// принадлежит источнику.
func (d *Deleter) Delete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	res := &DeleteResult{State: DeleteIdle}
	id := req.Entity.ID

	if req.Access != nil && !req.Access.Can(auth.OpDelete, req.Collection) {
		res.State = DeleteAborted
		return res, ErrNotAllowed
	}

	ev := &schema.HookEvent{
		Schema:     req.Schema,
		Collection: req.Collection,
		ID:         id,
		Values:     req.Entity.Values.Map(),
		Status:     req.Entity.Status,
	}
	if req.Access != nil {
		ev.Access = req.Access.Snapshot()
	}

	res.State = DeletePreDeleting
	if h := req.Schema.Hooks.OnPreDelete; h != nil {
		if herr := h(ctx, ev); herr != nil {
			res.State = DeleteAborted
			return res, &PreDeleteAbortedError{Err: herr}
		}
	}

	res.State = DeleteDeleting
	if perr := d.Source.Delete(ctx, req.Collection, id); perr != nil {
		res.State = DeleteFailed
		return res, &PersistenceError{Op: "delete", Collection: req.Collection, ID: id, Err: perr}
	}

	res.State = DeleteSucceeded
	if h := req.Schema.Hooks.OnDelete; h != nil {
		// удаление уже состоялось: ошибка хука его не возвращает
		if herr := h(ctx, ev); herr != nil {
			d.Log.Warn().Err(herr).Str("collection", req.Collection).Str("id", id).
				Msg("onDelete hook errored")
		}
	}
	return res, nil
}
