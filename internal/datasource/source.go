package datasource

import (
	"context"
	"errors"
	"time"
)

// Record — плоская карта значений, адресуемая ключами свойств схемы.
// Форму хранения определяет конкретный источник, ядро о ней не знает.
type Record map[string]any

// ErrNotFound — записи нет (или она удалена).
var ErrNotFound = errors.New("record not found")

// Source — узкий контракт внешнего документного хранилища.
// Ядро опирается ровно на три операции; ретраи/таймауты — забота источника.
type Source interface {
	// Get возвращает запись или ErrNotFound.
	Get(ctx context.Context, collection, id string) (Record, error)
	// Set пишет запись. Пустой id означает "сгенерируй id сам";
	// возвращается закоммиченный id.
	Set(ctx context.Context, collection, id string, rec Record) (string, error)
	// Delete удаляет запись; отсутствующая запись — ErrNotFound.
	Delete(ctx context.Context, collection, id string) error
}

// Stored — запись вместе со служебными полями источника.
// Нужна только обвязке (листинги, ETag), ядро работает с Record.
type Stored struct {
	ID        string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      Record
}

// Browser — опциональное расширение источника для обвязки.
type Browser interface {
	List(ctx context.Context, collection string) ([]*Stored, error)
	GetStored(ctx context.Context, collection, id string) (*Stored, error)
}
