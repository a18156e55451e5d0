package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency validates code as a well-formed ISO 4217 currency and
// returns its canonical upper-case form.
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("parse currency %q: %w", code, err)
	}
	return unit.String(), nil
}
