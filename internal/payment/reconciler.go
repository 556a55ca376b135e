package payment

import (
	"errors"
	"fmt"
	"math"

	"cine-pos/internal/models"
)

// Epsilon is the tolerated gap between the tendered sum and the cart total:
// one minor currency unit.
const Epsilon = 0.01

// floatSlack keeps a gap of exactly one cent inside the tolerance despite
// binary float representation error.
const floatSlack = 1e-9

// MethodMixed is persisted on the order when more than one tender was taken.
const MethodMixed = "mixed"

const (
	MethodCash    = "cash"
	MethodCard    = "card"
	MethodMobile  = "mobile"
	MethodVoucher = "voucher"
)

var (
	ErrUnbalanced    = errors.New("tendered amount does not cover the total")
	ErrInvalidMethod = errors.New("unknown tender method")
	ErrNoTenders     = errors.New("no tenders recorded")
)

// ValidMethod reports whether m is one of the accepted tender methods.
func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodMobile, MethodVoucher:
		return true
	}
	return false
}

// Reconciler accumulates the tenders of one sale and decides whether they
// cover the cart total. It is owned by a single till session.
type Reconciler struct {
	tenders []models.Tender
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// SetTenders replaces the tender set wholesale. Used by the single-method
// shortcuts ("pay it all by card").
func (r *Reconciler) SetTenders(tenders []models.Tender) error {
	for _, t := range tenders {
		if !ValidMethod(t.Method) {
			return fmt.Errorf("%w: %q", ErrInvalidMethod, t.Method)
		}
	}
	r.tenders = append([]models.Tender(nil), tenders...)
	return nil
}

// AddTender appends one entry for split-payment flows.
func (r *Reconciler) AddTender(t models.Tender) error {
	if !ValidMethod(t.Method) {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, t.Method)
	}
	r.tenders = append(r.tenders, t)
	return nil
}

// Tenders returns a copy of the current tender set.
func (r *Reconciler) Tenders() []models.Tender {
	return append([]models.Tender(nil), r.tenders...)
}

// Paid sums the tendered amounts.
func (r *Reconciler) Paid() float64 {
	var sum float64
	for _, t := range r.tenders {
		sum += t.Amount
	}
	return sum
}

// Remaining is the signed amount still owed; negative means overpaid.
func (r *Reconciler) Remaining(cartTotal float64) float64 {
	return cartTotal - r.Paid()
}

// IsBalanced reports whether the tenders cover the total within Epsilon.
func (r *Reconciler) IsBalanced(cartTotal float64) bool {
	return math.Abs(r.Paid()-cartTotal) <= Epsilon+floatSlack
}

// MethodLabel is the payment method persisted on the order: the sole
// tender's method, or "mixed" for split payments.
func (r *Reconciler) MethodLabel() string {
	switch len(r.tenders) {
	case 0:
		return ""
	case 1:
		return r.tenders[0].Method
	default:
		return MethodMixed
	}
}

// Ready gates the commit pipeline: it refuses until at least one tender is
// recorded and the set balances the total.
func (r *Reconciler) Ready(cartTotal float64) error {
	if len(r.tenders) == 0 {
		return ErrNoTenders
	}
	if !r.IsBalanced(cartTotal) {
		return fmt.Errorf("%w: total %.2f, tendered %.2f", ErrUnbalanced, cartTotal, r.Paid())
	}
	return nil
}

// Clear drops the tender set when a sale is cancelled.
func (r *Reconciler) Clear() {
	r.tenders = nil
}
