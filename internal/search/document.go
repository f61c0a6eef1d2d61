// Package search provides full-text search over rocks using Bleve.
// Rock documents denormalize the type label and owner name so a single
// query can match any of them.
package search

import (
	"strconv"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

// RockDocument is the indexed form of a rock.
type RockDocument struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	TypeLabel string  `json:"type_label,omitempty"`
	OwnerID   string  `json:"owner_id"`
	OwnerName string  `json:"owner_name,omitempty"`
	Weight    float64 `json:"weight"`
	CreatedAt int64   `json:"created_at"` // Unix seconds
}

// NewRockDocument builds the document for a rock. Type and Owner are
// optional; a rock without them is still searchable by name.
func NewRockDocument(r *domain.Rock) *RockDocument {
	doc := &RockDocument{
		ID:        DocID(r.ID),
		Name:      r.Name,
		OwnerID:   r.UserID,
		Weight:    r.Weight,
		CreatedAt: r.CreatedAt.Unix(),
	}
	if r.Type != nil {
		doc.TypeLabel = r.Type.Label
	}
	if r.Owner != nil {
		doc.OwnerName = r.Owner.FullName()
	}
	return doc
}

// ToMap converts the document into the field map Bleve indexes, so the
// field names always match the mapping.
func (d *RockDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"owner_id":   d.OwnerID,
		"weight":     d.Weight,
		"created_at": float64(d.CreatedAt),
	}
	if d.TypeLabel != "" {
		m["type_label"] = d.TypeLabel
	}
	if d.OwnerName != "" {
		m["owner_name"] = d.OwnerName
	}
	return m
}

// DocID is the index document id for a rock id.
func DocID(rockID int64) string {
	return strconv.FormatInt(rockID, 10)
}

// ParseDocID reverses DocID.
func ParseDocID(docID string) (int64, error) {
	return strconv.ParseInt(docID, 10, 64)
}
