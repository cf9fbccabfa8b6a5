package model

import "strings"

// Card is a recognised payment card.
type Card struct {
	Number string
}

// Last4 returns the last four digits of the card number.
func (c Card) Last4() string {
	if len(c.Number) <= 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// Masked returns the card number with every digit but the last four replaced.
func (c Card) Masked() string {
	if len(c.Number) <= 4 {
		return c.Number
	}
	return strings.Repeat("•", len(c.Number)-4) + c.Last4()
}
