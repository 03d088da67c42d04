package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Prompt is a saved prompt-library entry. Entries are deduplicated per
// owner by a content hash over the normalized prompt text; re-saving an
// existing prompt bumps UseCount instead of inserting a duplicate.
type Prompt struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"-"`
	Text         string    `json:"text"`
	NegativeText *string   `json:"negative_text,omitempty"`
	ContentHash  string    `json:"-"`
	UseCount     int       `json:"use_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// PromptContentHash computes the dedup hash for a prompt. Text is
// normalized (trimmed, collapsed whitespace, lowercased) so trivial
// formatting differences map to the same entry.
func PromptContentHash(text string, negative *string) string {
	h := sha256.New()
	h.Write([]byte(normalizePrompt(text)))
	if negative != nil {
		h.Write([]byte{0}) // separator so ("a","b") != ("ab",nil)
		h.Write([]byte(normalizePrompt(*negative)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizePrompt(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
