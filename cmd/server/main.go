package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"pult/internal/api"
	"pult/internal/auth"
	"pult/internal/blob"
	"pult/internal/config"
	"pult/internal/datasource"
	"pult/internal/pg"
	"pult/internal/reference"
	"pult/internal/schema"
)

// noopDelegate — делегат аутентификации по умолчанию: внешнего
// провайдера нет, вход никто не пропускал.
type noopDelegate struct {
	log zerolog.Logger
}

func (d *noopDelegate) SignOut()           { d.log.Info().Msg("sign-out requested") }
func (d *noopDelegate) LoginSkipped() bool { return false }

func main() {
	cfg := config.LoadWithPath("pult.json")

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		log = log.Level(zerolog.DebugLevel)
	case "warn":
		log = log.Level(zerolog.WarnLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}

	ctx := context.Background()

	// 1. Каталог схем + справочники enum
	schemas, err := schema.LoadCatalog(cfg.SchemasDir)
	if err != nil {
		log.Fatal().Err(err).Msg("schema catalog load failed")
	}
	enums, err := reference.LoadCatalog(cfg.EnumsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("enum catalog load failed")
	}
	if issues := schema.Lint(schemas, enums); len(issues) > 0 {
		for _, it := range issues {
			log.Error().Str("entity", it.Entity).Str("key", it.Key).Str("code", it.Code).Msg(it.Message)
		}
		log.Fatal().Int("issues", len(issues)).Msg("schema catalog has blocking issues")
	}
	registry := schema.NewRegistry(schemas, enums)
	log.Info().Int("entities", len(schemas)).Int("enumSets", len(enums)).Msg("catalogs loaded")

	// 2. Реестр ролей (опционален)
	var roles *auth.RoleRegistry
	if cfg.RolesFile != "" {
		if _, statErr := os.Stat(cfg.RolesFile); statErr == nil {
			roles, err = auth.LoadRoles(cfg.RolesFile, log)
			if err != nil {
				log.Fatal().Err(err).Msg("role registry load failed")
			}
		}
	}

	// 3. Источник данных: Postgres или in-memory
	var source datasource.Source
	if cfg.DBURL != "" {
		pgSrc, err := pg.Open(ctx, cfg.DBURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pgSrc.Close()
		if err := pgSrc.Ensure(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres bootstrap failed")
		}
		source = pgSrc
		log.Info().Msg("using postgres source")
	} else {
		source = datasource.NewMemory()
		log.Info().Msg("using in-memory source")
	}

	// 4. Блобы
	blobs := &blob.Local{Root: cfg.FilesRoot}

	// 5. Контроллер авторизации на сессию процесса
	controller := auth.NewController(auth.Options{
		Enabled:       cfg.AuthEnabled,
		Delegate:      &noopDelegate{log: log},
		Roles:         roles,
		DataSource:    source,
		StorageSource: blobs,
		Log:           log,
	})

	// 6. HTTP-обвязка
	srv := api.NewServer(registry, source, controller, roles, blobs, log)
	log.Info().Str("port", cfg.Port).Msg("starting pult")
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
