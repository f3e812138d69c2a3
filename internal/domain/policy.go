package domain

// OverdraftPolicy decides whether new accounts may go below zero.
type OverdraftPolicy struct {
	AllowNegativeByDefault bool
	ForbiddenCurrencies    map[string]bool
}

// NewOverdraftPolicy builds a policy from a default and a list of currencies that never allow overdraft.
func NewOverdraftPolicy(allowByDefault bool, forbidden []string) OverdraftPolicy {
	p := OverdraftPolicy{
		AllowNegativeByDefault: allowByDefault,
		ForbiddenCurrencies:    make(map[string]bool, len(forbidden)),
	}
	for _, c := range forbidden {
		if code, err := NormalizeCurrency(c); err == nil {
			p.ForbiddenCurrencies[code] = true
		}
	}
	return p
}

// AllowsNegative reports whether an account in currency may hold a negative balance.
func (p OverdraftPolicy) AllowsNegative(currency string) bool {
	if p.ForbiddenCurrencies[currency] {
		return false
	}
	return p.AllowNegativeByDefault
}
