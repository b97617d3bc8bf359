package services

import "github.com/Spare-Link/storefront/models"

// CanEdit reports whether completed checkout steps may be reopened. A cart
// waiting for organizational approval is frozen.
func CanEdit(cart *models.Cart) bool {
	return cart.ApprovalState() != models.ApprovalStatusPending
}
