package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pult/internal/reference"
	"pult/internal/schema"
)

type reloadReq struct {
	SchemasRoot string `json:"schemas_root"` // директория с YAML-каталогами схем
	EnumsRoot   string `json:"enums_root"`   // директория со справочниками enum
}

// POST /api/admin/reload — горячая перезагрузка каталогов с линт-гейтом.
// Билдеры и хуки переживают перезагрузку (Registry.Replace переносит их).
func (s *Server) adminReload(c *gin.Context) {
	var req reloadReq
	// пустое тело допустимо: перезагрузка из путей по умолчанию
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	schemasRoot := strings.TrimSpace(req.SchemasRoot)
	if schemasRoot == "" {
		schemasRoot = "schemas"
	}
	enumsRoot := strings.TrimSpace(req.EnumsRoot)
	if enumsRoot == "" {
		enumsRoot = "reference/enums"
	}

	// 1) читаем новые схемы и справочники
	newSchemas, err := schema.LoadCatalog(schemasRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schema catalog load error", "details": err.Error()})
		return
	}
	newEnums, err := reference.LoadCatalog(enumsRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enum catalog load error", "details": err.Error()})
		return
	}

	// 2) линт до подмены: битый каталог не принимаем
	if issues := schema.Lint(newSchemas, newEnums); len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "schema catalog has blocking issues",
			"issues": issues,
			"hint":   "fix the catalog and retry",
		})
		return
	}

	// 3) атомарная подмена
	s.Registry.Replace(newSchemas, newEnums)
	s.Log.Info().Int("entities", len(newSchemas)).Int("enumSets", len(newEnums)).Msg("catalogs reloaded")

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"entities":   len(newSchemas),
		"enumGroups": len(newEnums),
	})
}
