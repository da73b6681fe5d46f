package types

import "testing"

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Amount: 500, Currency: "GBP"}
	b := Money{Amount: 300, Currency: "GBP"}

	if got := a.Add(b); got.Amount != 800 || got.Currency != "GBP" {
		t.Errorf("Add = %+v", got)
	}
	if got := a.Mul(3); got.Amount != 1500 {
		t.Errorf("Mul = %+v", got)
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		m    Money
		want string
	}{
		{Money{Amount: 1810, Currency: "GBP"}, "18.10 GBP"},
		{Money{Amount: 5, Currency: "GBP"}, "0.05 GBP"},
		{Money{Amount: 100, Currency: "GBP"}, "1.00 GBP"},
	}
	for _, tc := range cases {
		if got := tc.m.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", tc.m.Amount, got, tc.want)
		}
	}
}
