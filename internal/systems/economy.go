package systems

import (
	"errors"
	"maps"
	"slices"
)

var (
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrCounterpartyCannotPay = errors.New("counterparty has insufficient resources")
	ErrInvalidAmount         = errors.New("resource amounts must be positive")
	ErrNoCurrencies          = errors.New("no currencies configured")
	ErrNothingToSteal        = errors.New("nothing to steal")
)

// StealPercent is the share of each currency a successful steal takes.
const StealPercent = 20

// AddResources returns a copy of res with delta added. Negative deltas are
// allowed and the result is clamped at zero.
func AddResources(res, delta map[string]int) map[string]int {
	out := maps.Clone(res)
	if out == nil {
		out = make(map[string]int, len(delta))
	}
	for k, v := range delta {
		out[k] = max(out[k]+v, 0)
	}
	return out
}

// CanAfford reports whether every entry of cost is covered by res.
func CanAfford(res, cost map[string]int) bool {
	for k, v := range cost {
		if res[k] < v {
			return false
		}
	}
	return true
}

// RemoveResources deducts cost from res. If any single entry would go
// negative nothing is deducted and ErrInsufficientResources is returned.
func RemoveResources(res, cost map[string]int) (map[string]int, error) {
	if err := validateAmounts(cost); err != nil {
		return nil, err
	}
	if !CanAfford(res, cost) {
		return nil, ErrInsufficientResources
	}
	out := maps.Clone(res)
	if out == nil {
		out = make(map[string]int)
	}
	for k, v := range cost {
		out[k] -= v
	}
	return out, nil
}

// TradeResult holds both parties' holdings after a trade.
type TradeResult struct {
	Initiator    map[string]int
	Counterparty map[string]int
}

// Trade swaps offer (paid by the initiator) for request (paid by the
// counterparty). Both legs are validated before either is applied.
func Trade(initiator, counterparty, offer, request map[string]int) (TradeResult, error) {
	if err := validateAmounts(offer); err != nil {
		return TradeResult{}, err
	}
	if err := validateAmounts(request); err != nil {
		return TradeResult{}, err
	}
	if len(offer) == 0 && len(request) == 0 {
		return TradeResult{}, ErrInvalidAmount
	}
	if !CanAfford(initiator, offer) {
		return TradeResult{}, ErrInsufficientResources
	}
	if !CanAfford(counterparty, request) {
		return TradeResult{}, ErrCounterpartyCannotPay
	}

	a, _ := RemoveResources(initiator, offer)
	b, _ := RemoveResources(counterparty, request)
	return TradeResult{
		Initiator:    AddResources(a, request),
		Counterparty: AddResources(b, offer),
	}, nil
}

// StealResult holds both parties' holdings after a steal.
type StealResult struct {
	Thief  map[string]int
	Victim map[string]int
	Stolen map[string]int
}

// Steal moves StealPercent of the victim's holdings in each currency, rounded
// down, to the thief. It fails if nothing would move.
func Steal(thief, victim map[string]int, currencies []string) (StealResult, error) {
	if len(currencies) == 0 {
		return StealResult{}, ErrNoCurrencies
	}
	stolen := make(map[string]int)
	for _, c := range slices.Compact(slices.Sorted(slices.Values(currencies))) {
		if amt := victim[c] * StealPercent / 100; amt > 0 {
			stolen[c] = amt
		}
	}
	if len(stolen) == 0 {
		return StealResult{}, ErrNothingToSteal
	}
	v, err := RemoveResources(victim, stolen)
	if err != nil {
		return StealResult{}, err
	}
	return StealResult{
		Thief:  AddResources(thief, stolen),
		Victim: v,
		Stolen: stolen,
	}, nil
}

// Earn credits currency by the configured earn rate for source, if any.
// Earn rates are keyed by source, for example "correctAnswer" or "gather".
func Earn(res map[string]int, rates map[string]int, source, currency string) (map[string]int, int) {
	amt := rates[source]
	if currency == "" || amt <= 0 {
		return maps.Clone(res), 0
	}
	return AddResources(res, map[string]int{currency: amt}), amt
}

func validateAmounts(m map[string]int) error {
	for _, v := range m {
		if v <= 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}
