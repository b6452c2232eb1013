package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pult/internal/datasource"
	"pult/internal/pipeline"
	"pult/internal/schema"
)

func flatten(st *datasource.Stored) map[string]any {
	out := map[string]any{
		"id":         st.ID,
		"version":    st.Version,
		"created_at": st.CreatedAt.Format(time.RFC3339),
		"updated_at": st.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range st.Data {
		// пользовательские поля не перетирают служебные при совпадении имён
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

// statusForError мапит ошибки пайплайнов на HTTP-статусы.
func statusForError(err error) int {
	var resErr *schema.ResolutionError
	var valErr *pipeline.ValidationError
	var preSave *pipeline.PreSaveAbortedError
	var preDel *pipeline.PreDeleteAbortedError
	var persist *pipeline.PersistenceError

	switch {
	case errors.Is(err, pipeline.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrCustomIDRequired), errors.Is(err, pipeline.ErrCustomIDInvalid):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &valErr):
		// конфликт целостности (unique/ref) — 409, остальное — 400
		if valErr.Conflict() {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case errors.As(err, &resErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &preSave), errors.As(err, &preDel):
		return http.StatusConflict
	case errors.As(err, &persist):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку пайплайна; проблемы полей отдаются списком.
func respondError(c *gin.Context, err error) {
	var valErr *pipeline.ValidationError
	if errors.As(err, &valErr) {
		c.JSON(statusForError(err), gin.H{"errors": valErr.Issues})
		return
	}
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}
