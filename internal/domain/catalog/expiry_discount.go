package catalog

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DiscountKind is how an expiry discount is applied
type DiscountKind string

const (
	DiscountKindPercentage  DiscountKind = "percentage"
	DiscountKindFixedAmount DiscountKind = "fixed_amount"
)

// IsValid checks if the kind is a valid DiscountKind
func (k DiscountKind) IsValid() bool {
	switch k {
	case DiscountKindPercentage, DiscountKindFixedAmount:
		return true
	}
	return false
}

// ExpiryDiscountRule applies when a batch has at most DaysBeforeExpiry days of shelf life left
type ExpiryDiscountRule struct {
	DaysBeforeExpiry int
	Kind             DiscountKind
	Value            decimal.Decimal
}

// Apply returns the discounted price, never negative
func (r ExpiryDiscountRule) Apply(price decimal.Decimal) decimal.Decimal {
	switch r.Kind {
	case DiscountKindPercentage:
		return valueobject.PercentageOff(price, r.Value)
	case DiscountKindFixedAmount:
		return valueobject.AmountOff(price, r.Value)
	}
	return price
}

// ValidateDiscountRules checks the rule table invariants
func ValidateDiscountRules(rules []ExpiryDiscountRule) error {
	seen := make(map[int]struct{}, len(rules))
	for _, r := range rules {
		if r.DaysBeforeExpiry <= 0 {
			return shared.NewValidationError("Discount rule days before expiry must be positive")
		}
		if _, dup := seen[r.DaysBeforeExpiry]; dup {
			return shared.NewValidationError("Duplicate discount rule for %d days before expiry", r.DaysBeforeExpiry)
		}
		seen[r.DaysBeforeExpiry] = struct{}{}
		if !r.Kind.IsValid() {
			return shared.NewValidationError("Invalid discount kind %q", r.Kind)
		}
		if r.Value.IsNegative() {
			return shared.NewValidationError("Discount value cannot be negative")
		}
		if r.Kind == DiscountKindPercentage && r.Value.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewValidationError("Percentage discount cannot exceed 100")
		}
	}
	return nil
}

// DaysUntilExpiry returns whole days between now and expiry, truncated toward zero
func DaysUntilExpiry(expiryDate, now time.Time) int {
	return int(expiryDate.Sub(now).Hours() / 24)
}

// SelectDiscountRule picks the tightest applicable rule: among rules with
// daysUntilExpiry <= DaysBeforeExpiry, the one with the smallest DaysBeforeExpiry.
func SelectDiscountRule(daysUntilExpiry int, rules []ExpiryDiscountRule) (ExpiryDiscountRule, bool) {
	var (
		best  ExpiryDiscountRule
		found bool
	)
	for _, r := range rules {
		if daysUntilExpiry > r.DaysBeforeExpiry {
			continue
		}
		if !found || r.DaysBeforeExpiry < best.DaysBeforeExpiry {
			best = r
			found = true
		}
	}
	return best, found
}

// EffectivePrice derives a batch's unit price from its remaining shelf life.
// Pure function of its arguments.
func EffectivePrice(price decimal.Decimal, expiryDate time.Time, rules []ExpiryDiscountRule, now time.Time) decimal.Decimal {
	rule, ok := SelectDiscountRule(DaysUntilExpiry(expiryDate, now), rules)
	if !ok {
		return price
	}
	return rule.Apply(price)
}
