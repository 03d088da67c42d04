package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/storage"
)

// HistoryHandler returns one page of the caller's gallery, newest first.
// Filters: visibility, models (comma-separated), cursor, limit.
func HistoryHandler(db *sql.DB) http.HandlerFunc {
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

		q := r.URL.Query()

		opts := database.ListOptions{
			OwnerID: user.ID,
			Models:  parseModelsParam(q.Get("models")),
			Cursor:  q.Get("cursor"),
		}

		if v := q.Get("visibility"); v != "" {
			vis := models.Visibility(v)
			if !vis.Valid() {
				sendError(w, "Visibility must be public or unlisted", "INVALID_PARAMETER", http.StatusBadRequest)
				return
			}
			opts.Visibility = &vis
		}

		if limitStr := q.Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				sendError(w, "Invalid limit parameter", "INVALID_PARAMETER", http.StatusBadRequest)
				return
			}
			opts.Limit = limit
		}

		page, err := database.ListImages(db, opts)
		if err != nil {
			if err == database.ErrBadCursor {
				sendError(w, "Invalid cursor", "INVALID_CURSOR", http.StatusBadRequest)
				return
			}
			slog.Error("failed to list images", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, page)
	}
}

// FeedHandler returns one page of the community feed: public images
// from all users, newest first. No authentication required.
func FeedHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()

		opts := database.FeedOptions{
			Models: parseModelsParam(q.Get("models")),
			Cursor: q.Get("cursor"),
		}
		if limitStr := q.Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 {
				sendError(w, "Invalid limit parameter", "INVALID_PARAMETER", http.StatusBadRequest)
				return
			}
			opts.Limit = limit
		}

		page, err := database.ListPublicFeed(db, opts)
		if err != nil {
			if err == database.ErrBadCursor {
				sendError(w, "Invalid cursor", "INVALID_CURSOR", http.StatusBadRequest)
				return
			}
			slog.Error("failed to list public feed", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, page)
	}
}

// GetImageHandler returns one image's full record. Unlisted images are
// reachable here by anyone holding the link; they are only hidden from
// the feed, not access-controlled.
func GetImageHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		id, ok := pathID(r.URL.Path, "/api/images/")
		if !ok {
			sendError(w, "Invalid image id", "INVALID_ID", http.StatusBadRequest)
			return
		}

		img, err := database.GetImageByID(db, id)
		if err != nil {
			if err == database.ErrNotFound {
				sendError(w, "Image not found", "NOT_FOUND", http.StatusNotFound)
				return
			}
			slog.Error("failed to get image", "error", err, "id", id)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, img.Detail())
	}
}

// VisibilityHandler toggles one image between public and unlisted
func VisibilityHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		id, ok := pathID(r.URL.Path, "/api/images/")
		if !ok {
			sendError(w, "Invalid image id", "INVALID_ID", http.StatusBadRequest)
			return
		}

		var req models.VisibilityRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !req.Visibility.Valid() {
			sendError(w, "Visibility must be public or unlisted", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}

		if err := database.SetVisibility(db, user.ID, id, req.Visibility); err != nil {
			switch err {
			case database.ErrNotFound:
				sendError(w, "Image not found", "NOT_FOUND", http.StatusNotFound)
			case database.ErrNotOwner:
				sendError(w, "Not the owner of this image", "FORBIDDEN", http.StatusForbidden)
			default:
				slog.Error("failed to set visibility", "error", err, "id", id)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		slog.Info("visibility changed", "user_id", user.ID, "image_id", id, "visibility", req.Visibility)
		w.WriteHeader(http.StatusNoContent)
	}
}

// VisibilityBulkHandler toggles visibility for a set of images. Items
// fail independently; the response reports per-item errors.
func VisibilityBulkHandler(db *sql.DB) http.HandlerFunc {
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

		var req models.VisibilityBulkRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.IDs) == 0 {
			sendError(w, "No image ids provided", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		if !req.Visibility.Valid() {
			sendError(w, "Visibility must be public or unlisted", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}

		result, err := database.SetVisibilityBulk(db, user.ID, req.IDs, req.Visibility)
		if err != nil {
			slog.Error("bulk visibility change failed", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("bulk visibility changed",
			"user_id", user.ID,
			"requested", len(req.IDs),
			"succeeded", result.SuccessCount,
		)
		sendJSON(w, http.StatusOK, result)
	}
}

// DeleteImageHandler deletes one image record and its stored objects
func DeleteImageHandler(db *sql.DB, store storage.Backend) http.HandlerFunc {
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

		id, ok := pathID(r.URL.Path, "/api/images/")
		if !ok {
			sendError(w, "Invalid image id", "INVALID_ID", http.StatusBadRequest)
			return
		}

		keys, err := database.DeleteImage(db, user.ID, id)
		if err != nil {
			switch err {
			case database.ErrNotFound:
				sendError(w, "Image not found", "NOT_FOUND", http.StatusNotFound)
			case database.ErrNotOwner:
				sendError(w, "Not the owner of this image", "FORBIDDEN", http.StatusForbidden)
			default:
				slog.Error("failed to delete image", "error", err, "id", id)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		deleteStoredObjects(r, store, keys)

		slog.Info("image deleted", "user_id", user.ID, "image_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteImagesBulkHandler deletes a set of images with per-item error
// aggregation, then best-effort removes the stored objects.
func DeleteImagesBulkHandler(db *sql.DB, store storage.Backend) http.HandlerFunc {
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

		var req models.DeleteBulkRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.IDs) == 0 {
			sendError(w, "No image ids provided", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}

		result, keys := database.DeleteImagesBulk(db, user.ID, req.IDs)

		deleteStoredObjects(r, store, keys)

		slog.Info("bulk delete completed",
			"user_id", user.ID,
			"requested", len(req.IDs),
			"succeeded", result.SuccessCount,
		)
		sendJSON(w, http.StatusOK, result)
	}
}
