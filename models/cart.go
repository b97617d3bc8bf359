package models

// ApprovalStatusType is the organizational sign-off state of a B2B cart.
type ApprovalStatusType string

const (
	ApprovalStatusPending  ApprovalStatusType = "pending"
	ApprovalStatusApproved ApprovalStatusType = "approved"
	ApprovalStatusRejected ApprovalStatusType = "rejected"
)

type ApprovalStatus struct {
	ID     string             `json:"id,omitempty"`
	Status ApprovalStatusType `json:"status"`
}

// Address is a cart shipping or billing address as the commerce API returns it.
type Address struct {
	FirstName   string `json:"first_name,omitempty" validate:"required"`
	LastName    string `json:"last_name,omitempty" validate:"required"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1,omitempty" validate:"required"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city,omitempty" validate:"required"`
	PostalCode  string `json:"postal_code,omitempty" validate:"required"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"country_code,omitempty" validate:"required"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingMethod is a shipping option already applied to a cart.
type ShippingMethod struct {
	ID               string   `json:"id"`
	ShippingOptionID string   `json:"shipping_option_id"`
	Name             string   `json:"name,omitempty"`
	Amount           *float64 `json:"amount,omitempty"`
}

// ShippingMethods keeps the order the backend appended them in.
// The current selection is the last entry.
type ShippingMethods []ShippingMethod

// Last returns the currently selected shipping method.
func (m ShippingMethods) Last() (ShippingMethod, bool) {
	if len(m) == 0 {
		return ShippingMethod{}, false
	}
	return m[len(m)-1], true
}

// Cart is the read-mostly projection of the backend cart.
type Cart struct {
	ID              string          `json:"id"`
	Email           string          `json:"email,omitempty"`
	CurrencyCode    string          `json:"currency_code,omitempty"`
	CustomerID      string          `json:"customer_id,omitempty"`
	ShippingAddress *Address        `json:"shipping_address,omitempty"`
	BillingAddress  *Address        `json:"billing_address,omitempty"`
	ShippingMethods ShippingMethods `json:"shipping_methods,omitempty"`
	ApprovalStatus  *ApprovalStatus `json:"approval_status,omitempty"`
}

// HasShippingAddress reports whether the address step has been completed.
func (c *Cart) HasShippingAddress() bool {
	return c != nil && c.ShippingAddress != nil && c.ShippingAddress.Address1 != ""
}

// ApprovalState returns the approval status, or "" when the cart has none.
func (c *Cart) ApprovalState() ApprovalStatusType {
	if c == nil || c.ApprovalStatus == nil {
		return ""
	}
	return c.ApprovalStatus.Status
}

type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type CartResponse struct {
	Cart Cart `json:"cart"`
}

type CustomerResponse struct {
	Customer Customer `json:"customer"`
}
