package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pult/internal/datasource"
	"pult/internal/pipeline"
	"pult/internal/schema"
)

// attachmentsFQN — служебная коллекция метаданных загруженных файлов.
const attachmentsFQN = "core.Attachment"

// POST /api/:module/:entity/:id/_file/:field
func (s *Server) uploadFile(c *gin.Context) {
	fqn, sch, ok := s.lookup(c)
	if !ok {
		return
	}
	id := c.Param("id")
	field := c.Param("field")

	if s.Blob == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blob store not configured"})
		return
	}

	// поле должно быть ссылкой (или массивом ссылок) на core.Attachment
	props, rerr := schema.Resolve(sch, map[string]any{}, id, fqn)
	if rerr != nil {
		c.JSON(statusForError(rerr), gin.H{"error": rerr.Error()})
		return
	}
	p, found := props.Get(field)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown field"})
		return
	}
	isArray := false
	switch {
	case p.Type == schema.TypeReference && p.RefTarget == attachmentsFQN:
	case p.Type == schema.TypeArray && p.Of != nil && p.Of.Type == schema.TypeReference && p.Of.RefTarget == attachmentsFQN:
		isArray = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field is not a reference to " + attachmentsFQN})
		return
	}

	raw, err := s.Source.Get(c.Request.Context(), fqn, id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Record not found"})
		return
	}

	file, hdr, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file not found (field name 'file')"})
		return
	}
	defer file.Close()

	key, size, sum, err := s.Blob.Put("", file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error", "details": err.Error()})
		return
	}

	// запись метаданных вложения
	att := datasource.Record{
		"owner_entity": fqn,
		"owner_id":     id,
		"file_name":    safeName(hdr),
		"mime":         hdr.Header.Get("Content-Type"),
		"size":         float64(size),
		"storage":      "local",
		"storage_key":  key,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
		"hash":         sum,
	}
	attID, err := s.Source.Set(c.Request.Context(), attachmentsFQN, "", att)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// подставляем ссылку в поле сущности через пайплайн сохранения,
	// чтобы хуки схемы увидели это изменение как обычное
	switch cur := raw[field].(type) {
	case nil:
		if isArray {
			raw[field] = []any{attID}
		} else {
			raw[field] = attID
		}
	case []any:
		raw[field] = append(cur, attID)
	case []string:
		arr := make([]any, 0, len(cur)+1)
		for _, v := range cur {
			arr = append(arr, v)
		}
		raw[field] = append(arr, attID)
	default:
		if isArray {
			raw[field] = []any{attID}
		} else {
			raw[field] = attID
		}
	}

	if _, err := s.Saver.Save(c.Request.Context(), pipeline.SaveRequest{
		Schema:     sch,
		Collection: fqn,
		ID:         id,
		Values:     raw,
		Status:     schema.StatusExisting,
		Access:     s.Access,
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attachment_id": attID,
		"storage_key":   key,
	})
}

func safeName(h *multipart.FileHeader) string {
	name := filepath.Base(strings.TrimSpace(h.Filename))
	if name == "" || name == "." {
		return "file"
	}
	return name
}

// GET /api/attachments/:id/download
func (s *Server) downloadAttachment(c *gin.Context) {
	id := c.Param("id")

	rec, err := s.Source.Get(c.Request.Context(), attachmentsFQN, id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": "Attachment not found"})
		return
	}
	if s.Blob == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blob store not configured"})
		return
	}

	key := toString(rec["storage_key"])
	name := toString(rec["file_name"])
	mime := toString(rec["mime"])
	p, _ := s.Blob.Path(key)

	if name == "" {
		name = "file"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if mime != "" {
		c.Header("Content-Type", mime)
	} else {
		c.Header("Content-Type", "application/octet-stream")
	}
	c.File(p)
}
