package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
)

// maxPromptLength bounds prompt text; providers reject far shorter
// prompts anyway.
const maxPromptLength = 10000

// SavePromptHandler adds a prompt-library entry. Saving a prompt whose
// normalized text already exists bumps its use count instead of
// creating a duplicate.
func SavePromptHandler(db *sql.DB) http.HandlerFunc {
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

		var req models.SavePromptRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.Text) == "" {
			sendError(w, "Prompt text is required", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}
		if len(req.Text) > maxPromptLength {
			sendError(w, "Prompt text too long", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}

		prompt, err := database.SavePrompt(db, user.ID, req.Text, req.NegativeText)
		if err != nil {
			slog.Error("failed to save prompt", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusCreated, prompt)
	}
}

// ListPromptsHandler returns the caller's prompt library, most recently
// used first
func ListPromptsHandler(db *sql.DB) http.HandlerFunc {
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

		prompts, err := database.ListPrompts(db, user.ID, 500)
		if err != nil {
			slog.Error("failed to list prompts", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, map[string]any{"items": prompts})
	}
}

// DeletePromptHandler removes a prompt-library entry
func DeletePromptHandler(db *sql.DB) http.HandlerFunc {
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

		id, ok := pathID(r.URL.Path, "/api/prompts/")
		if !ok {
			sendError(w, "Invalid prompt id", "INVALID_ID", http.StatusBadRequest)
			return
		}

		if err := database.DeletePrompt(db, user.ID, id); err != nil {
			switch err {
			case database.ErrNotFound:
				sendError(w, "Prompt not found", "NOT_FOUND", http.StatusNotFound)
			case database.ErrNotOwner:
				sendError(w, "Not the owner of this prompt", "FORBIDDEN", http.StatusForbidden)
			default:
				slog.Error("failed to delete prompt", "error", err, "id", id)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
