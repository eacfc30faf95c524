// internal/models/product.go
package models

import (
	"github.com/lib/pq"
)

// Product is a catalog record. Images holds store-relative blob references
// in display order; every entry must point at a blob that exists in the
// configured store at the moment the record is saved.
type Product struct {
	BaseModel
	Name     string         `json:"name" gorm:"size:255;not null"`
	Details  string         `json:"details" gorm:"type:text;not null"`
	Size     string         `json:"size" gorm:"size:50;not null"`
	Color    string         `json:"color" gorm:"size:50;not null"`
	Category string         `json:"category" gorm:"size:100;not null;index"`
	Price    float64        `json:"price" gorm:"type:decimal(10,2);not null"`
	Images   pq.StringArray `json:"images" gorm:"type:text[]"`

	// Version backs the repository's compare-and-swap so concurrent edits
	// of the same product cannot silently drop each other's image changes.
	Version int64 `json:"version" gorm:"not null;default:1"`
}
