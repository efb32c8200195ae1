package pricing

import (
	"fmt"
	"strconv"

	"github.com/rushrental/carbooking/internal/domain"
)

// Price computes the cost breakdown for a rental. Amounts are integer cents
// so line items stay exact; per-day options multiply by duration, flat-fee
// options do not. durationDays below 1 is charged as a single day.
//
// Selections referencing an option missing from the catalog return
// ErrUnknownOption: that is a data fault, not caller input. Quantities
// outside the option's limit return a ValidationError.
func Price(dailyRateCents int64, durationDays int, selections map[int64]int, catalog map[int64]domain.Option) (domain.CostBreakdown, error) {
	if durationDays < 1 {
		durationDays = 1
	}

	breakdown := domain.CostBreakdown{
		BaseCents: dailyRateCents * int64(durationDays),
	}

	for optionID, qty := range selections {
		option, ok := catalog[optionID]
		if !ok {
			return domain.CostBreakdown{}, fmt.Errorf("%w: id %d", domain.ErrUnknownOption, optionID)
		}
		if err := validateQuantity(option, qty); err != nil {
			return domain.CostBreakdown{}, err
		}
		breakdown.OptionsCents += lineItemCents(option, durationDays, qty)
	}

	breakdown.TotalCents = breakdown.BaseCents + breakdown.OptionsCents
	return breakdown, nil
}

func lineItemCents(option domain.Option, durationDays, qty int) int64 {
	switch option.Pricing {
	case domain.OptionPricingPerDay:
		return option.UnitPriceCents * int64(durationDays) * int64(qty)
	default:
		return option.UnitPriceCents * int64(qty)
	}
}

func validateQuantity(option domain.Option, qty int) error {
	if qty < 0 {
		return domain.NewValidationError("option_"+strconv.FormatInt(option.ID, 10), domain.CodeOptionQuantity)
	}
	if option.MaxQuantity > 0 && qty > option.MaxQuantity {
		return domain.NewValidationError("option_"+strconv.FormatInt(option.ID, 10), domain.CodeOptionQuantity)
	}
	return nil
}
