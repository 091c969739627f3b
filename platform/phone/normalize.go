// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region is supplied by configuration.
const DefaultRegion = "US"

// NormalizeE164 formats a phone number to E.164 using region for numbers written
// without a country code. Invalid numbers return an error.
func NormalizeE164(input, region string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}

	if !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("invalid phone number %q", trimmed)
	}

	return phonenumbers.Format(number, phonenumbers.E164), nil
}
