package campaign

import (
	"fmt"
	"strings"
)

// Tier maps an inclusive purchase-amount range to a single prize name.
type Tier struct {
	Min   float64
	Max   float64
	Prize string
}

// DefaultTiers is the campaign's amount-to-prize table (MXN, before tax).
var DefaultTiers = []Tier{
	{6000, 9999, "Pelacables"},
	{10000, 19999, "Amazon $500"},
	{20000, 39999, "Electrodoméstico o Tarjeta Liverpool"},
	{40000, 59999, "Amazon $2000"},
	{60000, 99999, `Pantalla 40"`},
	{100000, 149999, "Amazon $5000"},
	{150000, 199999, "Smartphone"},
	{200000, 299999, "Tablet premium"},
	{300000, 499999, "Motoneta"},
}

// DefaultCapacity is the configured stock per prize for the campaign.
var DefaultCapacity = map[string]int{
	"Pelacables":                           470,
	"Amazon $500":                          60,
	"Electrodoméstico o Tarjeta Liverpool": 120,
	"Amazon $2000":                         40,
	`Pantalla 40"`:                         32,
	"Amazon $5000":                         20,
	"Smartphone":                           15,
	"Tablet premium":                       10,
	"Motoneta":                             2,
}

// Resolve returns the prize for the first tier whose inclusive range
// contains amount. ok is false when the amount is below the lowest tier,
// above the highest, or falls in a gap. Comparisons use the amount as
// given; cents are significant.
func Resolve(tiers []Tier, amount float64) (prize string, ok bool) {
	for _, t := range tiers {
		if t.Min <= amount && amount <= t.Max {
			return t.Prize, true
		}
	}
	return "", false
}

// ValidateTiers rejects a tier table that is unordered, overlapping, or
// degenerate. Run once at wiring time; Resolve assumes a valid table.
func ValidateTiers(tiers []Tier) error {
	for i, t := range tiers {
		if t.Prize == "" {
			return fmt.Errorf("tier %d: empty prize name", i)
		}
		if t.Min > t.Max {
			return fmt.Errorf("tier %d (%s): min %v > max %v", i, t.Prize, t.Min, t.Max)
		}
		if i > 0 && tiers[i-1].Max >= t.Min {
			return fmt.Errorf("tier %d (%s): overlaps or disorders previous tier ending at %v",
				i, t.Prize, tiers[i-1].Max)
		}
	}
	return nil
}

// Sentinel outcomes recorded in the ledger's prize column when no real
// prize was assigned. Reconciliation must not count these against stock.
const (
	OutcomePendingReview = "Pendiente de validación"
	OutcomeManualReview  = "Revisión manual"
	OutcomeNoPrize       = "Sin premio disponible"
	OutcomeInsufficient  = "Monto insuficiente"
)

// sentinel prefixes, lowercase. Prefix match tolerates operator notes
// appended after the sentinel in manually edited rows.
var sentinelPrefixes = []string{
	"pendiente",
	"revisión manual",
	"revision manual",
	"monto insuficiente",
	"sin premio",
	"sin premios",
	"rechazado",
}

// IsRealPrize reports whether a ledger outcome names an actual prize,
// as opposed to a sentinel (pending, review, no-stock, rejected) or blank.
func IsRealPrize(outcome string) bool {
	p := strings.ToLower(strings.TrimSpace(outcome))
	if p == "" {
		return false
	}
	for _, pfx := range sentinelPrefixes {
		if strings.HasPrefix(p, pfx) {
			return false
		}
	}
	return true
}
