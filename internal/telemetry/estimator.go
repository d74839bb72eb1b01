// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import "unicode/utf8"

// =============================================================================
// COST ESTIMATION
// =============================================================================

const (
	// DefaultCharsPerUnit is the character-to-unit ratio (~4 chars per token).
	DefaultCharsPerUnit = 4

	// DefaultRatePerMillion is the blended price in dollars per million units.
	// Sonnet-class pricing is $3/M input and $15/M output; 9.0 is the average.
	DefaultRatePerMillion = 9.0
)

// Estimate is the result of metering a piece of work.
type Estimate struct {
	Units int64   `json:"units"`
	Cost  float64 `json:"cost"`
}

// CostEstimator maps text volume to approximate units and dollar cost.
// It is a plain value with no state; the zero value is not useful, use
// NewCostEstimator.
type CostEstimator struct {
	charsPerUnit   int
	ratePerMillion float64
}

// NewCostEstimator returns an estimator with the default ratio and rate.
func NewCostEstimator() CostEstimator {
	return CostEstimator{
		charsPerUnit:   DefaultCharsPerUnit,
		ratePerMillion: DefaultRatePerMillion,
	}
}

// NewCostEstimatorWithRate returns an estimator with a custom ratio and rate.
// Non-positive ratios fall back to DefaultCharsPerUnit and negative rates to 0.
func NewCostEstimatorWithRate(charsPerUnit int, ratePerMillion float64) CostEstimator {
	if charsPerUnit <= 0 {
		charsPerUnit = DefaultCharsPerUnit
	}
	if ratePerMillion < 0 {
		ratePerMillion = 0
	}
	return CostEstimator{
		charsPerUnit:   charsPerUnit,
		ratePerMillion: ratePerMillion,
	}
}

// Estimate converts a character count into units and cost.
//
//	units = charCount / charsPerUnit   (floor)
//	cost  = units / 1_000_000 * ratePerMillion
//
// Negative counts are treated as zero.
func (e CostEstimator) Estimate(charCount int) Estimate {
	if charCount <= 0 {
		return Estimate{}
	}
	perUnit := e.charsPerUnit
	if perUnit <= 0 {
		perUnit = DefaultCharsPerUnit
	}
	units := int64(charCount / perUnit)
	return Estimate{
		Units: units,
		Cost:  float64(units) / 1_000_000 * e.ratePerMillion,
	}
}

// EstimateText meters the combined character (rune) count of texts.
func (e CostEstimator) EstimateText(texts ...string) Estimate {
	n := 0
	for _, t := range texts {
		n += utf8.RuneCountInString(t)
	}
	return e.Estimate(n)
}

// CharsPerUnit returns the configured character-to-unit ratio.
func (e CostEstimator) CharsPerUnit() int {
	return e.charsPerUnit
}

// RatePerMillion returns the configured dollar rate per million units.
func (e CostEstimator) RatePerMillion() float64 {
	return e.ratePerMillion
}
