package schema

import "fmt"

// ResolutionError — ошибка построения карты свойств (билдер вернул ошибку
// или запаниковал). Несёт путь, на котором резолвился билдер.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("schema resolution at %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolve возвращает конкретную карту свойств для текущих значений сущности.
//
// Статическая карта отдаётся как есть. Билдер вызывается синхронно с
// контекстом {values, entityId, path}; его результат не кэшируется —
// резолв повторяется на каждом изменении значений и ещё раз перед записью,
// чтобы свойства, зависящие от соседних полей, не протухали.
//
// Резолв атомарен: при любой ошибке карта не возвращается даже частично.
func Resolve(s *EntitySchema, values map[string]any, entityID, path string) (pm *PropertyMap, err error) {
	if s.PropertiesBuilder == nil {
		if s.Properties == nil {
			return nil, &ResolutionError{Path: path, Err: fmt.Errorf("schema %q declares no properties", s.FQN())}
		}
		return s.Properties, nil
	}

	// паника билдера — тоже ResolutionError, а не падение пайплайна
	defer func() {
		if r := recover(); r != nil {
			pm, err = nil, &ResolutionError{Path: path, Err: fmt.Errorf("builder panic: %v", r)}
		}
	}()

	built, berr := s.PropertiesBuilder(BuilderContext{Values: values, EntityID: entityID, Path: path})
	if berr != nil {
		return nil, &ResolutionError{Path: path, Err: berr}
	}
	if built == nil || built.Len() == 0 {
		return nil, &ResolutionError{Path: path, Err: fmt.Errorf("builder returned empty property map")}
	}
	return built, nil
}
