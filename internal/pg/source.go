// Package pg — документный Source поверх Postgres: одна jsonb-таблица,
// адресация (collection, id), мягкое удаление. Сетевой транспорт и ретраи —
// забота драйвера, ядро видит только Get/Set/Delete.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"pult/internal/datasource"
)

type Source struct {
	db      *sql.DB
	log     zerolog.Logger
	entropy io.Reader
}

// Open подключается к Postgres и готовит Source (таблица создаётся в Ensure).
func Open(ctx context.Context, url string, log zerolog.Logger) (*Source, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Source{db: db, log: log, entropy: ulid.Monotonic(src, 0)}, nil
}

func (s *Source) Close() error { return s.db.Close() }

var bootstrapDDL = []string{
	`create table if not exists documents (
		collection text not null,
		id         text not null,
		version    bigint not null default 1,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now(),
		deleted    boolean not null default false,
		data       jsonb not null,
		primary key (collection, id)
	)`,
	`create index if not exists documents_live_idx on documents (collection) where not deleted`,
}

// Ensure выполняет idempotent DDL. Дубликаты объектов (42710) пропускаем.
func (s *Source) Ensure(ctx context.Context) error {
	ddlCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, stmt := range bootstrapDDL {
		if _, err := s.db.ExecContext(ddlCtx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				s.log.Info().Str("object", pgErr.ConstraintName).Msg("DDL skipped (already exists)")
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "already exists") {
				s.log.Info().Err(err).Msg("DDL skipped (already exists)")
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Source) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Source) Get(ctx context.Context, collection, id string) (datasource.Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`select data from documents where collection = $1 and id = $2 and not deleted`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datasource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec datasource.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Source) Set(ctx context.Context, collection, id string, rec datasource.Record) (string, error) {
	if id == "" {
		id = s.newID()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into documents (collection, id, data) values ($1, $2, $3)
		 on conflict (collection, id) do update
		 set data = excluded.data,
		     version = documents.version + 1,
		     updated_at = now(),
		     deleted = false`,
		collection, id, raw)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Source) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update documents
		 set deleted = true, version = version + 1, updated_at = now()
		 where collection = $1 and id = $2 and not deleted`,
		collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return datasource.ErrNotFound
	}
	return nil
}

// List отдаёт живые записи коллекции (для обвязки).
func (s *Source) List(ctx context.Context, collection string) ([]*datasource.Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, version, created_at, updated_at, data
		 from documents where collection = $1 and not deleted order by id`,
		collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*datasource.Stored
	for rows.Next() {
		st, err := scanStored(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Source) GetStored(ctx context.Context, collection, id string) (*datasource.Stored, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, version, created_at, updated_at, data
		 from documents where collection = $1 and id = $2 and not deleted`,
		collection, id)
	st, err := scanStored(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, datasource.ErrNotFound
	}
	return st, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStored(r rowScanner) (*datasource.Stored, error) {
	var st datasource.Stored
	var raw []byte
	if err := r.Scan(&st.ID, &st.Version, &st.CreatedAt, &st.UpdatedAt, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &st.Data); err != nil {
		return nil, err
	}
	return &st, nil
}
