package checker

import (
	"fmt"
)

// CheckWebhookToken compares the configured webhook token against the value
// supplied via header or query parameter. An empty configured token disables
// the check.
func CheckWebhookToken(required, headerToken, queryToken string) error {
	if required == "" {
		return nil
	}

	supplied := headerToken
	if supplied == "" {
		supplied = queryToken
	}
	if supplied != required {
		return fmt.Errorf("invalid webhook token")
	}

	return nil
}

// CheckDevCreditAmount validates the amount for the dev-only credit grant.
func CheckDevCreditAmount(amount int) error {
	if amount <= 0 || amount > 1000 {
		return fmt.Errorf("invalid amount")
	}

	return nil
}
