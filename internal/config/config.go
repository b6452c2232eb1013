package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
)

type Config struct {
	Port       string `json:"port"`
	SchemasDir string `json:"schemasDir"`
	EnumsDir   string `json:"enumsDir"`
	RolesFile  string `json:"rolesFile"`
	DBURL      string `json:"dbUrl"` // пусто = in-memory источник

	AuthEnabled bool   `json:"authEnabled"`
	LogLevel    string `json:"logLevel"` // debug | info | warn

	// Файлы (локально); задел под s3-драйвер
	BlobDriver string `json:"blobDriver"` // "local" (default)
	FilesRoot  string `json:"filesRoot"`
}

func def() Config {
	return Config{
		Port:        "8080",
		SchemasDir:  "schemas",
		EnumsDir:    "reference/enums",
		RolesFile:   "reference/roles.yaml",
		DBURL:       "",
		AuthEnabled: false,
		LogLevel:    "info",
		BlobDriver:  "local",
		FilesRoot:   "uploads",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("PULT_PORT", cfg.Port)
	cfg.SchemasDir = getenv("PULT_SCHEMAS_DIR", cfg.SchemasDir)
	cfg.EnumsDir = getenv("PULT_ENUMS_DIR", cfg.EnumsDir)
	cfg.RolesFile = getenv("PULT_ROLES_FILE", cfg.RolesFile)
	cfg.DBURL = getenv("PULT_DB_URL", cfg.DBURL)
	cfg.AuthEnabled = getenvBool("PULT_AUTH_ENABLED", cfg.AuthEnabled)
	cfg.LogLevel = getenv("PULT_LOG_LEVEL", cfg.LogLevel)
	cfg.BlobDriver = getenv("PULT_BLOB_DRIVER", cfg.BlobDriver)
	cfg.FilesRoot = getenv("PULT_FILES_ROOT", cfg.FilesRoot)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	schemas := flag.String("schemas", cfg.SchemasDir, "Path to schema catalog directory")
	enums := flag.String("enums", cfg.EnumsDir, "Path to enums directory")
	roles := flag.String("roles", cfg.RolesFile, "Path to roles YAML")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	authOn := flag.Bool("auth", cfg.AuthEnabled, "Enable authentication")
	level := flag.String("log-level", cfg.LogLevel, "Log level (debug/info/warn)")
	blobDrv := flag.String("blob-driver", cfg.BlobDriver, "Blob driver (local)")
	files := flag.String("files-root", cfg.FilesRoot, "Local files root")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.SchemasDir = strings.TrimSpace(*schemas)
	cfg.EnumsDir = strings.TrimSpace(*enums)
	cfg.RolesFile = strings.TrimSpace(*roles)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AuthEnabled = *authOn
	cfg.LogLevel = strings.TrimSpace(*level)
	cfg.BlobDriver = strings.TrimSpace(*blobDrv)
	cfg.FilesRoot = strings.TrimSpace(*files)

	return cfg
}
