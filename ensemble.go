package geostat

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NegativeR2Policy decides how members scoring worse than the mean enter an
// ensemble.
type NegativeR2Policy string

const (
	// UseRaw keeps negative R² as negative weights.
	UseRaw NegativeR2Policy = "raw"
	// ClampZero gives negative R² members zero weight. When every member
	// clamps to zero the finite members are weighted equally.
	ClampZero NegativeR2Policy = "clamp"
	// Exclude drops negative R² members and fails when none is left.
	Exclude NegativeR2Policy = "exclude"
)

// EnsembleWeights turns member R² scores into weights summing to 1. NaN
// scores always get zero weight.
func EnsembleWeights(r2 []float64, policy NegativeR2Policy) ([]float64, error) {
	if len(r2) == 0 {
		return nil, newValidation("r2", "no ensemble members", 0)
	}
	switch policy {
	case UseRaw, ClampZero, Exclude:
	default:
		return nil, newValidation("policy", "unknown negative R² policy", policy)
	}
	w := make([]float64, len(r2))
	for i, v := range r2 {
		if !math.IsNaN(v) && (v >= 0 || policy == UseRaw) {
			w[i] = v
		}
	}
	sum := floats.Sum(w)
	if sum == 0 && policy == ClampZero {
		for i, v := range r2 {
			if !math.IsNaN(v) {
				w[i] = 1
			}
		}
		sum = floats.Sum(w)
	}
	if !(sum > 0) {
		return nil, newValidation("r2", "weights do not sum to a positive value", r2)
	}
	floats.Scale(1/sum, w)
	return w, nil
}

// Ensemble combines member predictions location by location. Missing member
// predictions are skipped and the remaining weights renormalised; the
// variance assumes independent members.
func Ensemble(results [][]Prediction, weights []float64) ([]Prediction, error) {
	if len(results) == 0 || len(results) != len(weights) {
		return nil, newValidation("weights", "one weight per member is required", len(weights))
	}
	n := len(results[0])
	for _, r := range results {
		if len(r) != n {
			return nil, newValidation("results", "members predicted different grids", len(r))
		}
	}

	out := make([]Prediction, n)
	for i := 0; i < n; i++ {
		loc := Location{ID: results[0][i].ID, Point: results[0][i].Point}
		var value, variance, total float64
		for k, r := range results {
			p := r[i]
			if p.ID != loc.ID {
				return nil, newValidation("results", "members are not aligned", p.ID)
			}
			if p.Missing() || weights[k] == 0 {
				continue
			}
			value += weights[k] * p.Value
			variance += weights[k] * weights[k] * p.Variance
			total += weights[k]
		}
		if total == 0 {
			out[i] = missing(loc, 0, newInsufficientNeighbors(loc.ID, 0, 1))
			continue
		}
		out[i] = Prediction{
			ID:       loc.ID,
			Point:    loc.Point,
			Value:    value / total,
			Variance: variance / (total * total),
		}
	}
	return out, nil
}
