package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseQuantityLenient(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{" 12.5 ", "12.5", true},
		{"", "0", false},
		{"abc", "0", false},
		{"12,5", "0", false},
	}
	for _, tc := range cases {
		got, ok := ParseQuantity(tc.raw)
		if ok != tc.ok {
			t.Errorf("ParseQuantity(%q) ok: want=%v got=%v", tc.raw, tc.ok, ok)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseQuantity(%q): want=%s got=%s", tc.raw, tc.want, got)
		}
	}
}

func TestRound2HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"33.3333": "33.33",
		"66.665":  "66.67",
	}
	for in, want := range cases {
		got := Round2(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Round2(%s): want=%s got=%s", in, want, got)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	if got := FormatQuantity(decimal.NewFromInt(40)); got != "40.00" {
		t.Fatalf("want=40.00 got=%s", got)
	}
}

func TestSumQuantitiesSkipsNothing(t *testing.T) {
	crops := []Crop{
		{Quantity: decimal.RequireFromString("10.10")},
		{Quantity: decimal.RequireFromString("5.25"), Blocked: true},
	}
	if got := SumQuantities(crops); !got.Equal(decimal.RequireFromString("15.35")) {
		t.Fatalf("sum: got=%s", got)
	}
	if got := SumQuantities(ActiveCrops(crops)); !got.Equal(decimal.RequireFromString("10.10")) {
		t.Fatalf("active sum: got=%s", got)
	}
}
