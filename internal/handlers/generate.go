package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/generation"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/storage"
	"github.com/nferro/atelier/internal/thumbnail"
)

// GenerateHandler runs a batch generation and saves each result to the
// caller's gallery. Items fail independently: a storage or database
// error on one output never discards the others.
func GenerateHandler(db *sql.DB, cfg *config.Config, gen generation.Generator, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req models.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.Prompt) == "" {
			sendError(w, "Prompt is required", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		if req.Count < 1 {
			req.Count = 1
		}
		if req.Count > cfg.MaxBatchCount {
			sendError(w, fmt.Sprintf("Batch count exceeds maximum of %d", cfg.MaxBatchCount), "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		if req.Visibility == "" {
			req.Visibility = models.VisibilityUnlisted
		}
		if !req.Visibility.Valid() {
			sendError(w, "Visibility must be public or unlisted", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		if err := req.Params.Validate(); err != nil {
			sendError(w, err.Error(), "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		model := req.Model
		if model == "" {
			model = cfg.ImageModel
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.GenerateTimeout)
		defer cancel()

		start := time.Now()
		outputs, err := gen.Generate(ctx, generation.Request{
			Prompt:         req.Prompt,
			NegativePrompt: derefOrEmpty(req.NegativePrompt),
			Model:          model,
			Count:          req.Count,
			Params:         req.Params,
		})
		if err != nil {
			metrics.GenerationsTotal.WithLabelValues("failure").Inc()
			if ctx.Err() == context.DeadlineExceeded {
				sendError(w, "Generation timed out", "GENERATION_TIMEOUT", http.StatusGatewayTimeout)
				return
			}
			slog.Error("generation failed", "error", err, "user_id", user.ID, "model", model)
			sendError(w, "Generation failed", "GENERATION_FAILED", http.StatusBadGateway)
			return
		}
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())

		result := models.GenerateResponse{}
		for i, out := range outputs {
			detail, err := saveGeneratedMedia(ctx, db, store, user.ID, &req, model, out)
			if err != nil {
				slog.Error("failed to save generated item",
					"error", err,
					"user_id", user.ID,
					"item", i,
				)
				result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
				continue
			}
			result.Created = append(result.Created, *detail)
		}

		if len(result.Created) == 0 {
			metrics.GenerationsTotal.WithLabelValues("failure").Inc()
			sendError(w, "All generated items failed to save", "STORAGE_ERROR", http.StatusBadGateway)
			return
		}
		metrics.GenerationsTotal.WithLabelValues("success").Inc()

		// Auto-save the prompt so the library tracks what actually ran.
		// Failure here never affects the generation response.
		if _, err := database.SavePrompt(db, user.ID, req.Prompt, req.NegativePrompt); err != nil {
			slog.Warn("failed to auto-save prompt", "error", err, "user_id", user.ID)
		}

		slog.Info("generation completed",
			"user_id", user.ID,
			"model", model,
			"requested", req.Count,
			"created", len(result.Created),
			"failed", len(result.Errors),
			"duration", time.Since(start),
		)

		sendJSON(w, http.StatusCreated, result)
	}
}

// saveGeneratedMedia uploads one generated output and records it.
func saveGeneratedMedia(ctx context.Context, db *sql.DB, store storage.Backend, ownerID int64, req *models.GenerateRequest, model string, out generation.Output) (*models.ImageDetail, error) {
	key := "generated/" + uuid.New().String() + extForContentType(out.ContentType)

	uploaded, err := store.UploadWithThumbnail(ctx, key, out.Data, out.ContentType)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	width, height := out.Width, out.Height
	if width == 0 || height == 0 {
		if w, h, err := thumbnail.Dimensions(out.Data); err == nil {
			width, height = w, h
		}
	}

	img := &models.Image{
		OwnerID:        ownerID,
		Visibility:     req.Visibility,
		StorageKey:     key,
		PublicURL:      uploaded.Media.URL,
		ContentType:    out.ContentType,
		SizeBytes:      uploaded.Media.SizeBytes,
		Width:          width,
		Height:         height,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          model,
		Seed:           req.Seed,
		Params:         req.Params,
	}
	if uploaded.Thumbnail != nil {
		img.ThumbnailURL = &uploaded.Thumbnail.URL
	}
	if ratio := models.AspectRatio(width, height); ratio > 0 {
		img.AspectRatio = &ratio
	}

	if err := database.CreateImage(db, img); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	detail := img.Detail()
	return &detail, nil
}

func extForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ""
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
