// Package valuation derives the headline deal metrics shown on dashboards.
// Compute is pure: no I/O and the same record always yields the same metrics.
package valuation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Baseline values used when the driving assumption has not been entered yet.
const (
	DefaultIRR        = 12.5
	DefaultCapRate    = 8.5
	DefaultCashOnCash = 9.2
	DefaultADR        = 195.0
)

// Metrics are the derived deal metrics. Rates are percentages.
type Metrics struct {
	IRR        float64 `json:"irr"`
	CapRate    float64 `json:"cap_rate"`
	CashOnCash float64 `json:"cash_on_cash"`
	ADR        float64 `json:"adr"`
}

// ComputeRaw applies the metric formulas without rounding.
func ComputeRaw(record map[string]any) Metrics {
	m := Metrics{
		IRR:        DefaultIRR,
		CapRate:    DefaultCapRate,
		CashOnCash: DefaultCashOnCash,
		ADR:        DefaultADR,
	}

	// Longer holds pull the baseline IRR down.
	if hold, ok := number(record, "hold_period"); ok {
		m.IRR = DefaultIRR + (hold-5)*-0.3
	}

	if capIn, ok := number(record, "cap_rate_going_in"); ok {
		m.CapRate = capIn
		m.CashOnCash = m.CapRate * 1.08
		if exitCap, ok := number(record, "exit_cap_rate"); ok {
			m.IRR += (m.CapRate - exitCap) * 2
		}
	}

	price, okPrice := number(record, "purchase_price")
	rooms, okRooms := number(record, "number_of_rooms")
	if okPrice && okRooms && price > 0 && rooms > 0 {
		m.ADR = 150 + price/rooms/1000
	}

	// An entered ADR always wins over the estimate.
	if adr, ok := number(record, "adr_base"); ok {
		m.ADR = adr
	}
	return m
}

// Compute applies the formulas and rounds IRR, cap rate and cash-on-cash to
// one decimal place and ADR to a whole number.
func Compute(record map[string]any) Metrics {
	m := ComputeRaw(record)
	return Metrics{
		IRR:        round1(m.IRR),
		CapRate:    round1(m.CapRate),
		CashOnCash: round1(m.CashOnCash),
		ADR:        math.Round(m.ADR),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// number reads a field as a float. Missing keys, nil, and values that do not
// parse as numbers are "not present".
func number(record map[string]any, key string) (float64, bool) {
	raw, ok := record[key]
	if !ok || raw == nil {
		return 0, false
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
