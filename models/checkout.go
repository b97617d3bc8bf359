package models

import "time"

// Step is a checkout wizard step. It is always derived, never persisted.
type Step string

const (
	StepAddress        Step = "address"
	StepDelivery       Step = "delivery"
	StepContactDetails Step = "contact-details"
	StepPayment        Step = "payment"
)

// ParseStep maps a step query signal onto a Step. Unknown values yield "".
func ParseStep(s string) Step {
	switch Step(s) {
	case StepAddress, StepDelivery, StepContactDetails, StepPayment:
		return Step(s)
	}
	return ""
}

// StepView is what the page needs to render one step header.
type StepView struct {
	Step      Step `json:"step"`
	Open      bool `json:"open"`
	Completed bool `json:"completed"`
	Editable  bool `json:"editable"`
}

// AddressForm is the consolidated address submission.
type AddressForm struct {
	ShippingAddress Address  `json:"shipping_address"`
	BillingAddress  *Address `json:"billing_address,omitempty" validate:"-"`
	SameAsBilling   bool     `json:"same_as_billing"`
	Email           string   `json:"email" validate:"required,email"`
}

type SetShippingMethodRequest struct {
	ShippingOptionID string `json:"shipping_option_id" binding:"required"`
}

type EditStepRequest struct {
	Step string `json:"step" binding:"required"`
}

// SubmissionPhase is the observable state of a step's mutating action.
type SubmissionPhase string

const (
	PhaseIdle    SubmissionPhase = "idle"
	PhasePending SubmissionPhase = "pending"
	PhaseSuccess SubmissionPhase = "success"
	PhaseError   SubmissionPhase = "error"
)

type SubmissionState struct {
	Phase SubmissionPhase `json:"phase"`
	Error string          `json:"error,omitempty"`
}

// PriceDisplayState is how a shipping option's price is shown.
type PriceDisplayState string

const (
	PriceHidden      PriceDisplayState = "hidden"
	PriceAmount      PriceDisplayState = "amount"
	PricePending     PriceDisplayState = "pending"
	PriceUnavailable PriceDisplayState = "unavailable"
)

type PriceDisplay struct {
	State PriceDisplayState `json:"state"`
	Text  string            `json:"text,omitempty"`
}

// DeliveryOptionView is one row of the delivery step.
type DeliveryOptionView struct {
	ShippingOption
	Selected      bool         `json:"selected"`
	Price         PriceDisplay `json:"price"`
	PickupAddress string       `json:"pickup_address,omitempty"`
}

// CheckoutEvent is published after a successful checkout mutation.
type CheckoutEvent struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	CartID    string            `json:"cart_id"`
	Step      Step              `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	EventAddressesSet      = "checkout.addresses_set"
	EventShippingMethodSet = "checkout.shipping_method_set"
)
