package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"pult/internal/auth"
	"pult/internal/datasource"
	"pult/internal/entity"
	"pult/internal/schema"
)

// SaveState — состояние конечного автомата сохранения.
type SaveState string

const (
	SaveIdle       SaveState = "idle"
	SaveResolving  SaveState = "resolving"
	SavePreSaving  SaveState = "pre_saving"
	SavePersisting SaveState = "persisting"
	SaveSucceeded  SaveState = "succeeded"
	SaveFailed     SaveState = "failed"
	SaveAborted    SaveState = "aborted"
)

// SaveRequest — одно сохранение одной сущности.
// Вызывающий не должен запускать второе сохранение той же сущности,
// пока это не дошло до терминального состояния (кооперативная дисциплина,
// ядро реестра in-flight операций не держит).
type SaveRequest struct {
	Schema     *schema.EntitySchema
	Collection string // FQN коллекции
	ID         string // пустой для new/copy без custom id
	Values     map[string]any
	Status     schema.Status
	Access     *auth.Controller // nil => без гейта
}

// SaveResult — исход сохранения.
type SaveResult struct {
	State  SaveState
	ID     string         // закоммиченный id (для сгенерированных — новый)
	Values map[string]any // то, что реально ушло в хранилище
	Issues []entity.Issue // несмертельные проблемы полей
}

// Saver гоняет сохранение через Resolving -> PreSaving -> Persisting.
type Saver struct {
	Source datasource.Source
	Log    zerolog.Logger
}

// Save выполняет пайплайн сохранения.
//
// Гарантии: до успешного Set внешнее состояние не меняется; из пары
// {OnSaveSuccess, OnSaveFailure} по итогам попытки вызывается ровно один,
// и не более одного раза. Ошибки post-commit хуков логируются и уже
// закоммиченную запись не откатывают.
func (s *Saver) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	res := &SaveResult{State: SaveIdle, ID: req.ID, Values: req.Values}

	// Resolving: перерезолв прямо перед записью, чтобы не сохранить
	// по протухшей билдерной карте свойств
	res.State = SaveResolving
	props, err := schema.Resolve(req.Schema, req.Values, req.ID, req.Collection)
	if err != nil {
		res.State = SaveAborted
		return res, err
	}

	// несмертельные проблемы полей собираем, но сохранение не рубим
	res.Issues = append(res.Issues, entity.CheckRequired(props, req.Values)...)

	// гейт авторизации: мутация без права = отказ до каких-либо хуков
	if req.Access != nil {
		op := auth.OpUpdate
		if req.Status == schema.StatusNew || req.Status == schema.StatusCopy {
			op = auth.OpCreate
		}
		if !req.Access.Can(op, req.Collection) {
			res.State = SaveAborted
			return res, ErrNotAllowed
		}
	}

	// custom id: явный id обязан прийти от вызывающего,
	// а при объявленном списке — входить в него
	if req.Schema.CustomID.Enabled {
		if req.ID == "" {
			res.State = SaveAborted
			return res, ErrCustomIDRequired
		}
		if allowed := req.Schema.CustomID.Allowed; len(allowed) > 0 {
			found := false
			for _, a := range allowed {
				if a == req.ID {
					found = true
					break
				}
			}
			if !found {
				res.State = SaveAborted
				return res, ErrCustomIDInvalid
			}
		}
	}

	// правила, проверяемые по хранилищу: unique/readonly/ref
	if vis := s.checkStorageRules(ctx, req, props); len(vis) > 0 {
		res.Issues = append(res.Issues, vis...)
		res.State = SaveAborted
		return res, &ValidationError{Issues: vis}
	}

	ev := &schema.HookEvent{
		Schema:     req.Schema,
		Collection: req.Collection,
		ID:         req.ID,
		Values:     req.Values,
		Status:     req.Status,
	}
	if req.Access != nil {
		ev.Access = req.Access.Snapshot()
	}

	// PreSaving: хук может преобразовать значения или прервать сохранение
	res.State = SavePreSaving
	toPersist := req.Values
	if h := req.Schema.Hooks.OnPreSave; h != nil {
		transformed, herr := h(ctx, ev)
		if herr != nil {
			res.State = SaveAborted
			return res, &PreSaveAbortedError{Err: herr}
		}
		if transformed != nil {
			toPersist = transformed
		}
	}
	res.Values = toPersist

	// Persisting
	res.State = SavePersisting
	committedID, perr := s.Source.Set(ctx, req.Collection, req.ID, toPersist)
	if perr != nil {
		res.State = SaveFailed
		ev.Err = perr
		if h := req.Schema.Hooks.OnSaveFailure; h != nil {
			if herr := h(ctx, ev); herr != nil {
				s.Log.Warn().Err(herr).Str("collection", req.Collection).Str("id", req.ID).
					Msg("onSaveFailure hook errored")
			}
		}
		return res, &PersistenceError{Op: "set", Collection: req.Collection, ID: req.ID, Err: perr}
	}

	res.State = SaveSucceeded
	res.ID = committedID
	ev.ID = committedID
	ev.Values = toPersist
	if h := req.Schema.Hooks.OnSaveSuccess; h != nil {
		// запись уже закоммичена: ошибка хука её не отменяет
		if herr := h(ctx, ev); herr != nil {
			s.Log.Warn().Err(herr).Str("collection", req.Collection).Str("id", committedID).
				Msg("onSaveSuccess hook errored")
		}
	}
	return res, nil
}
