package handlers

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/storage"
	"github.com/nferro/atelier/internal/thumbnail"
)

// allowedUploadTypes are the reference-image content types accepted from
// clients. The type is sniffed from content, never trusted from headers.
var allowedUploadTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadHandler accepts a reference image for later img2img use
func UploadHandler(db *sql.DB, cfg *config.Config, store storage.Backend) http.HandlerFunc {
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

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
			sendError(w, "File too large or invalid form data", "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			sendError(w, "No file provided", "NO_FILE", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxUploadBytes {
			sendError(w, "File size exceeds upload limit", "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("failed to read upload", "error", err)
			sendError(w, "Failed to read file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		mtype := mimetype.Detect(data)
		ext, ok := allowedUploadTypes[mtype.String()]
		if !ok {
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Unsupported file type: "+mtype.String(), "UNSUPPORTED_TYPE", http.StatusUnsupportedMediaType)
			return
		}

		width, height, err := thumbnail.Dimensions(data)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Corrupt or unreadable image", "INVALID_IMAGE", http.StatusBadRequest)
			return
		}

		key := "references/" + uuid.New().String() + ext

		result, err := store.UploadWithThumbnail(r.Context(), key, data, mtype.String())
		if err != nil {
			slog.Error("reference upload failed", "error", err, "key", key)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Failed to store file", "STORAGE_ERROR", http.StatusBadGateway)
			return
		}

		ref := &models.ReferenceImage{
			OwnerID:     user.ID,
			StorageKey:  key,
			PublicURL:   result.Media.URL,
			ContentType: mtype.String(),
			SizeBytes:   result.Media.SizeBytes,
			Width:       width,
			Height:      height,
		}
		if result.Thumbnail != nil {
			ref.ThumbnailURL = &result.Thumbnail.URL
		}

		if err := database.CreateReferenceImage(db, ref); err != nil {
			slog.Error("failed to record reference image", "error", err, "key", key)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.UploadsTotal.WithLabelValues("success").Inc()
		metrics.UploadSizeBytes.Observe(float64(len(data)))

		slog.Info("reference image uploaded",
			"user_id", user.ID,
			"key", key,
			"size", len(data),
			"type", mtype.String(),
		)

		sendJSON(w, http.StatusCreated, models.UploadResponse{
			ID:           ref.ID,
			URL:          ref.PublicURL,
			ThumbnailURL: ref.ThumbnailURL,
			ContentType:  ref.ContentType,
			SizeBytes:    ref.SizeBytes,
			Width:        ref.Width,
			Height:       ref.Height,
			CreatedAt:    ref.CreatedAt,
		})
	}
}

// ListReferencesHandler returns the caller's reference images, newest first
func ListReferencesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		refs, err := database.ListReferenceImages(db, user.ID, 200)
		if err != nil {
			slog.Error("failed to list reference images", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, map[string]any{"items": refs})
	}
}

// DeleteReferenceHandler removes a reference image and its stored objects
func DeleteReferenceHandler(db *sql.DB, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		id, ok := pathID(r.URL.Path, "/api/references/")
		if !ok {
			sendError(w, "Invalid reference id", "INVALID_ID", http.StatusBadRequest)
			return
		}

		keys, err := database.DeleteReferenceImage(db, user.ID, id)
		if err != nil {
			switch err {
			case database.ErrNotFound:
				sendError(w, "Reference image not found", "NOT_FOUND", http.StatusNotFound)
			case database.ErrNotOwner:
				sendError(w, "Not the owner of this reference image", "FORBIDDEN", http.StatusForbidden)
			default:
				slog.Error("failed to delete reference image", "error", err, "id", id)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		// Metadata is authoritative; storage deletion is best-effort
		deleteStoredObjects(r, store, keys)

		w.WriteHeader(http.StatusNoContent)
	}
}

// deleteStoredObjects removes object-store keys after a metadata delete.
// Failures are logged and never surfaced: the records are already gone
// and orphaned objects are harmless.
func deleteStoredObjects(r *http.Request, store storage.Backend, keys []string) {
	for _, key := range keys {
		if err := store.Delete(r.Context(), key); err != nil {
			slog.Warn("failed to delete stored object", "key", key, "error", err)
		}
	}
}
