package services

import (
	"errors"

	"github.com/Spare-Link/storefront/models"
)

var (
	ErrEditLocked     = errors.New("checkout is locked while the cart awaits approval")
	ErrStepNotReached = errors.New("checkout step has not been completed yet")
	ErrUnknownStep    = errors.New("unknown checkout step")
)

// Steps lists the wizard steps in order.
var Steps = []models.Step{
	models.StepAddress,
	models.StepDelivery,
	models.StepContactDetails,
	models.StepPayment,
}

// DeriveStep computes the active step from the cart and the requested step
// signal. The signal only takes effect where the cart allows it.
func DeriveStep(cart *models.Cart, signal models.Step) models.Step {
	if !cart.HasShippingAddress() {
		return models.StepAddress
	}
	editable := CanEdit(cart)
	if signal == models.StepAddress && editable {
		return models.StepAddress
	}
	if len(cart.ShippingMethods) == 0 || (signal == models.StepDelivery && editable) {
		return models.StepDelivery
	}
	if signal == models.StepContactDetails {
		return models.StepContactDetails
	}
	return models.StepPayment
}

// Advance returns the step signal that follows a successful submission of step.
func Advance(step models.Step) models.Step {
	switch step {
	case models.StepAddress:
		return models.StepDelivery
	case models.StepDelivery:
		return models.StepContactDetails
	default:
		return models.StepPayment
	}
}

// StepCompleted reports whether the cart already carries what step collects.
// Payment is completed outside the storefront and never reports true.
func StepCompleted(cart *models.Cart, step models.Step) bool {
	switch step {
	case models.StepAddress:
		return cart.HasShippingAddress()
	case models.StepDelivery:
		return cart.HasShippingAddress() && len(cart.ShippingMethods) > 0
	case models.StepContactDetails:
		return StepCompleted(cart, models.StepDelivery) && cart.Email != ""
	}
	return false
}

// stepReachable reports whether the cart holds enough for step to be reopened.
// Delivery opens once addresses and email are set, before a method is chosen.
func stepReachable(cart *models.Cart, step models.Step) bool {
	switch step {
	case models.StepDelivery:
		return cart.HasShippingAddress() && cart.BillingAddress != nil && cart.Email != ""
	case models.StepPayment:
		return false
	}
	return StepCompleted(cart, step)
}

// CanReopen is the edit affordance of a step: reachable and not locked by approval.
func CanReopen(cart *models.Cart, step models.Step) bool {
	return CanEdit(cart) && stepReachable(cart, step)
}

// Edit validates a request to reopen target and returns the step signal to navigate to.
func Edit(cart *models.Cart, target models.Step) (models.Step, error) {
	if models.ParseStep(string(target)) == "" {
		return "", ErrUnknownStep
	}
	if !CanEdit(cart) {
		return "", ErrEditLocked
	}
	if !stepReachable(cart, target) {
		return "", ErrStepNotReached
	}
	return target, nil
}

// StepViews describes every step header for the active step.
func StepViews(cart *models.Cart, active models.Step) []models.StepView {
	views := make([]models.StepView, 0, len(Steps))
	for _, step := range Steps {
		v := models.StepView{
			Step:      step,
			Open:      step == active,
			Completed: StepCompleted(cart, step),
		}
		v.Editable = !v.Open && CanReopen(cart, step)
		views = append(views, v)
	}
	return views
}
