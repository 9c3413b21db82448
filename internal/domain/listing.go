/**
 * @description
 * This file defines the minimal listing view the core needs: ownership for
 * authorization, price for checkout snapshots, and stock for availability
 * checks. Listing content (title, media, category) is owned by the catalog
 * service; the core only reads and reserves stock.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Listing is the core's view of a sellable item.
type Listing struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"` // minor units
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
