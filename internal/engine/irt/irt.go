// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package irt implements the numerical core of the engine: the
// three-parameter logistic (3PL) response model, Fisher information, and
// theta/percentile conversion.
//
// All functions are pure and finite for any input in the documented
// domains; none returns NaN or Inf.
package irt

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// expOverflowGuard bounds the logistic exponent. Beyond +/-20 the logistic
// term saturates within float64 precision.
const expOverflowGuard = 20.0

// fisherProbabilityFloor excludes near-certain responses from the
// information calculation; at the asymptotes an item reveals nothing.
const (
	fisherProbabilityFloor   = 0.01
	fisherProbabilityCeiling = 0.99
)

// Probability computes P(correct | theta) under the 3PL model:
//
//	P(theta) = c + (1 - c) / (1 + exp(-a(theta - b)))
//
// The result is clamped to [0, 1].
func Probability(theta, b, a, c float64) float64 {
	exponent := -a * (theta - b)

	if exponent > expOverflowGuard {
		return c
	}
	if exponent < -expOverflowGuard {
		return 1.0
	}

	p := c + (1-c)/(1+math.Exp(exponent))
	return math.Max(0.0, math.Min(1.0, p))
}

// FisherInformation computes I(theta) for an item, the item-selection
// objective:
//
//	I(theta) = a^2 * P'(theta)^2 / (P(theta) * (1 - P(theta)))
//
// Returns 0 when the response probability is outside (0.01, 0.99): at the
// asymptotes the item carries no usable information and the ratio would be
// numerically unstable.
func FisherInformation(theta, b, a, c float64) float64 {
	p := Probability(theta, b, a, c)

	exponent := -a * (theta - b)
	if math.Abs(exponent) > expOverflowGuard {
		return 0.0
	}

	expVal := math.Exp(exponent)
	denom := (1 + expVal) * (1 + expVal)
	pPrime := a * (1 - c) * expVal / denom

	q := 1 - p
	if p <= fisherProbabilityFloor || p >= fisherProbabilityCeiling {
		return 0.0
	}

	return a * a * pPrime * pPrime / (p * q)
}

// ThetaToPercentile converts a theta estimate to a percentile in [0, 100]
// under the standard-normal approximation theta ~ N(0, 1).
func ThetaToPercentile(theta float64) float64 {
	return distuv.UnitNormal.CDF(theta) * 100.0
}

// PercentileToTheta is the inverse of ThetaToPercentile. The percentile is
// clamped away from 0 and 100 so the quantile stays finite.
func PercentileToTheta(percentile float64) float64 {
	p := percentile / 100.0
	const eps = 1e-12
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return distuv.UnitNormal.Quantile(p)
}
