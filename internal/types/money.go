// README: Common value objects shared across modules.
package types

import "fmt"

// Money is an amount in the currency's minor unit (pence for GBP).
type Money struct {
	Amount   int64
	Currency string
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}

type ID string

type Point struct {
	Lat float64
	Lng float64
}
