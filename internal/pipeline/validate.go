package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pult/internal/datasource"
	"pult/internal/entity"
	"pult/internal/schema"
)

// checkStorageRules сверяет значения с правилами, которые проверяются
// только по хранилищу: unique, readonly и существование ссылок.
// Любая найденная проблема блокирует запись (в отличие от required).
func (s *Saver) checkStorageRules(ctx context.Context, req SaveRequest, props *schema.PropertyMap) []entity.Issue {
	var issues []entity.Issue

	// readonly: после создания поле менять нельзя; стартовое значение
	// (new/copy) ставить можно
	if req.Status == schema.StatusExisting {
		var current datasource.Record
		for _, key := range props.Keys() {
			p, _ := props.Get(key)
			if !p.Validation.Readonly {
				continue
			}
			v, ok := req.Values[key]
			if !ok {
				continue
			}
			if current == nil {
				cur, err := s.Source.Get(ctx, req.Collection, req.ID)
				if err != nil {
					break // записи нет — readonly сверять не с чем
				}
				current = cur
			}
			if fmt.Sprintf("%v", current[key]) != fmt.Sprintf("%v", v) {
				issues = append(issues, entity.Issue{
					Code: entity.IssueReadonly, Key: key,
					Message: "property '" + key + "' is read-only",
				})
			}
		}
	}

	// unique: другой живой записи с тем же значением быть не должно.
	// Без Browser-расширения источника проверять нечем.
	if b, ok := s.Source.(datasource.Browser); ok {
		for _, key := range props.Keys() {
			p, _ := props.Get(key)
			if !p.Validation.Unique {
				continue
			}
			v, has := req.Values[key]
			if !has || v == nil {
				continue
			}
			if violatesUnique(ctx, b, req.Collection, key, v, req.ID) {
				issues = append(issues, entity.Issue{
					Code: entity.IssueUnique, Key: key,
					Message: "property '" + key + "' must be unique",
				})
			}
		}
	}

	// ссылки: single и array, цель должна существовать
	for _, key := range props.Keys() {
		p, _ := props.Get(key)
		v, has := req.Values[key]
		if !has || v == nil {
			continue
		}
		switch {
		case p.Type == schema.TypeReference:
			issues = append(issues, s.checkRef(ctx, req.Schema, key, p.RefTarget, v)...)
		case p.Type == schema.TypeArray && p.Of != nil && p.Of.Type == schema.TypeReference:
			for _, el := range toAnySlice(v) {
				if more := s.checkRef(ctx, req.Schema, key, p.Of.RefTarget, el); len(more) > 0 {
					issues = append(issues, more...)
					break
				}
			}
		}
	}

	return issues
}

func (s *Saver) checkRef(ctx context.Context, sch *schema.EntitySchema, key, target string, v any) []entity.Issue {
	if strings.TrimSpace(target) == "" {
		return nil
	}
	// цель без модуля — считаем её из модуля схемы
	if !strings.Contains(target, ".") {
		target = sch.Module + "." + target
	}
	id, _ := v.(string)
	if id != "" {
		if _, err := s.Source.Get(ctx, target, id); err == nil {
			return nil
		} else if !errors.Is(err, datasource.ErrNotFound) {
			return nil // хранилище недоступно — не наша ошибка поля
		}
	}
	return []entity.Issue{{
		Code: entity.IssueRefNotFound, Key: key,
		Message: "referenced '" + target + "' not found",
	}}
}

func violatesUnique(ctx context.Context, b datasource.Browser, collection, key string, v any, excludeID string) bool {
	needle := fmt.Sprintf("%v", v)
	all, err := b.List(ctx, collection)
	if err != nil {
		return false
	}
	for _, st := range all {
		if st.ID == excludeID {
			continue
		}
		if cur, ok := st.Data[key]; ok && fmt.Sprintf("%v", cur) == needle {
			return true
		}
	}
	return false
}

func toAnySlice(v any) []any {
	switch arr := v.(type) {
	case []any:
		return arr
	case []string:
		out := make([]any, 0, len(arr))
		for _, s := range arr {
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}
