package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/analytics"
	"github.com/example/listening-companion/internal/platform/api"
	"github.com/example/listening-companion/internal/platform/httpserver"
	"github.com/example/listening-companion/services/api/internal/content"
	"github.com/example/listening-companion/services/api/internal/youtube"
)

// ContentImporter turns an article or video URL into listenable text.
type ContentImporter interface {
	Import(ctx context.Context, rawURL string) (content.Result, error)
}

type importRequest struct {
	URL string `json:"url"`
}

type Content struct {
	Importer  ContentImporter
	Analytics *analytics.Publisher
	Log       *zap.Logger
}

func (c Content) FromURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req importRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			api.BadRequest(w, "VALIDATION_ERROR", "Valid URL required", rid, nil)
			return
		}

		res, err := c.Importer.Import(r.Context(), req.URL)
		if err != nil {
			var ue *content.UserError
			if errors.As(err, &ue) {
				api.BadRequest(w, "IMPORT_FAILED", ue.Message, rid, nil)
				return
			}
			if c.Log != nil {
				c.Log.Error("import content", zap.String("request_id", rid), zap.Error(err))
			}
			api.WriteError(w, http.StatusInternalServerError, "IMPORT_FAILED", "Failed to import content from URL", rid, nil)
			return
		}

		source := "article"
		if youtube.IsURL(req.URL) {
			source = "youtube"
		}
		c.Analytics.Publish(analytics.SubjectContentImported, "content_imported", userID(r), map[string]any{
			"source": source,
			"chars":  len(res.Text),
		})
		api.WriteJSON(w, http.StatusOK, res)
	}
}
