package database

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nferro/atelier/internal/models"
)

// Gallery queries pick among five shapes depending on which filters are
// present, preferring a composite index over a filtered scan. The choice
// is an explicit strategy table keyed by (hasVisibility, model bucket)
// rather than nested conditionals, so the mapping is enumerable and
// testable for exhaustiveness.
//
// The disjunctive multi-model case cannot be served by a single composite
// index: it degrades to the most specific available index plus a SQL IN
// predicate evaluated in the engine's filter stage.

const (
	modelsNone = iota
	modelsSingle
	modelsMany
)

type planKey struct {
	hasVisibility bool
	modelBucket   int
}

// indexDescriptor names the composite index expected to serve a query
// shape and whether a post-filter predicate applies on top of the scan.
type indexDescriptor struct {
	index      string
	postFilter bool
}

var galleryStrategy = map[planKey]indexDescriptor{
	{hasVisibility: false, modelBucket: modelsNone}:   {index: "idx_images_owner_created"},
	{hasVisibility: false, modelBucket: modelsSingle}: {index: "idx_images_owner_model_created"},
	{hasVisibility: false, modelBucket: modelsMany}:   {index: "idx_images_owner_created", postFilter: true},
	{hasVisibility: true, modelBucket: modelsNone}:    {index: "idx_images_owner_vis_created"},
	{hasVisibility: true, modelBucket: modelsSingle}:  {index: "idx_images_owner_vis_model_created"},
	{hasVisibility: true, modelBucket: modelsMany}:    {index: "idx_images_owner_vis_created", postFilter: true},
}

func modelBucket(n int) int {
	switch {
	case n == 0:
		return modelsNone
	case n == 1:
		return modelsSingle
	default:
		return modelsMany
	}
}

// ListOptions are the owner-history gallery filters.
type ListOptions struct {
	OwnerID    int64
	Visibility *models.Visibility // nil = all
	Models     []string           // empty = all
	Cursor     string             // opaque, from a previous page
	Limit      int
}

// FeedOptions are the public-feed filters.
type FeedOptions struct {
	Models []string
	Cursor string
	Limit  int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// cursor is a stable keyset position: the (created_at, id) pair of the
// last item on the previous page. Offset pagination would skip or repeat
// rows when records are inserted or deleted between pages.
type cursor struct {
	createdAt int64 // epoch millis
	id        int64
}

func encodeCursor(c cursor) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d:%d", c.createdAt, c.id)))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, ErrBadCursor
	}
	var c cursor
	if _, err := fmt.Sscanf(string(raw), "%d:%d", &c.createdAt, &c.id); err != nil {
		return cursor{}, ErrBadCursor
	}
	return c, nil
}

// ListImages returns one page of the owner's gallery, newest first.
// The page's Done flag is the only reliable end-of-data signal: with
// sparse filters a page may be shorter than the limit while more matching
// rows remain further down the scan.
func ListImages(db *sql.DB, opts ListOptions) (*models.ImagePage, error) {
	key := planKey{
		hasVisibility: opts.Visibility != nil,
		modelBucket:   modelBucket(len(opts.Models)),
	}
	plan, ok := galleryStrategy[key]
	if !ok {
		return nil, fmt.Errorf("no gallery strategy for key %+v", key)
	}

	where := []string{"owner_id = ?"}
	args := []any{opts.OwnerID}

	if opts.Visibility != nil {
		if !opts.Visibility.Valid() {
			return nil, fmt.Errorf("invalid visibility filter %q", *opts.Visibility)
		}
		where = append(where, "visibility = ?")
		args = append(args, string(*opts.Visibility))
	}

	switch key.modelBucket {
	case modelsSingle:
		where = append(where, "model = ?")
		args = append(args, opts.Models[0])
	case modelsMany:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Models)), ",")
		where = append(where, fmt.Sprintf("model IN (%s)", placeholders))
		for _, m := range opts.Models {
			args = append(args, m)
		}
	}

	slog.Debug("gallery query planned",
		"index", plan.index,
		"post_filter", plan.postFilter,
		"visibility_filter", opts.Visibility != nil,
		"model_count", len(opts.Models),
	)

	return queryPage(db, where, args, opts.Cursor, clampLimit(opts.Limit))
}

// ListPublicFeed returns one page of public images across all owners,
// newest first, served by the (visibility, created_at) index.
func ListPublicFeed(db *sql.DB, opts FeedOptions) (*models.ImagePage, error) {
	where := []string{"visibility = ?"}
	args := []any{string(models.VisibilityPublic)}

	switch modelBucket(len(opts.Models)) {
	case modelsSingle:
		where = append(where, "model = ?")
		args = append(args, opts.Models[0])
	case modelsMany:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Models)), ",")
		where = append(where, fmt.Sprintf("model IN (%s)", placeholders))
		for _, m := range opts.Models {
			args = append(args, m)
		}
	}

	return queryPage(db, where, args, opts.Cursor, clampLimit(opts.Limit))
}

// queryPage runs the shared keyset pagination: one extra row is fetched to
// decide the Done flag without a second count query.
func queryPage(db *sql.DB, where []string, args []any, cursorStr string, limit int) (*models.ImagePage, error) {
	if cursorStr != "" {
		c, err := decodeCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, c.createdAt, c.createdAt, c.id)
	}

	query := fmt.Sprintf(`
		SELECT id, visibility, public_url, thumbnail_url, content_type,
			width, height, aspect_ratio, model, created_at
		FROM images
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit+1)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gallery page: %w", err)
	}
	defer rows.Close()

	var items []models.ImageSummary
	for rows.Next() {
		var item models.ImageSummary
		var visibility string
		var thumbnailURL sql.NullString
		var aspectRatio sql.NullFloat64
		var createdAt int64

		err := rows.Scan(
			&item.ID,
			&visibility,
			&item.PublicURL,
			&thumbnailURL,
			&item.ContentType,
			&item.Width,
			&item.Height,
			&aspectRatio,
			&item.Model,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery row: %w", err)
		}

		item.Visibility = models.Visibility(visibility)
		if thumbnailURL.Valid {
			item.ThumbnailURL = &thumbnailURL.String
		}
		if aspectRatio.Valid {
			item.AspectRatio = &aspectRatio.Float64
		}
		item.CreatedAt = fromMillis(createdAt)

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gallery rows: %w", err)
	}

	page := &models.ImagePage{Done: true}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		page.Done = false
		page.NextCursor = encodeCursor(cursor{createdAt: millis(last.CreatedAt), id: last.ID})
	}
	page.Items = items

	return page, nil
}
