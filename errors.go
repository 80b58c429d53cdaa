package geostat

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	ErrInsufficientNeighbors = errors.New("insufficient neighbors")
	ErrSingularSystem        = errors.New("singular kriging system")
	ErrInfeasibleParameters  = errors.New("infeasible variogram parameters")
	ErrFitDidNotConverge     = errors.New("variogram fit did not converge")
	ErrFit                   = errors.New("variogram fit failed")
	ErrMalformedDataset      = errors.New("malformed dataset")
	ErrNegativeVariance      = errors.New("negative kriging variance")
	ErrInvalidOption         = errors.New("invalid option")
)

// InsufficientNeighborsError marks a location whose neighbourhood holds fewer
// samples than NMin.
type InsufficientNeighborsError struct {
	Location int
	Found    int
	Required int
}

func (e *InsufficientNeighborsError) Error() string {
	return fmt.Sprintf("location %d: %d neighbors found, %d required", e.Location, e.Found, e.Required)
}

func (e *InsufficientNeighborsError) Is(target error) bool { return target == ErrInsufficientNeighbors }

func (e *InsufficientNeighborsError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("location", e.Location).Int("found", e.Found).Int("required", e.Required).
		Str("type", "InsufficientNeighbors")
}

func newInsufficientNeighbors(loc, found, required int) error {
	return errors.WithStack(&InsufficientNeighborsError{Location: loc, Found: found, Required: required})
}

// SingularSystemError marks a location whose kriging system could not be
// solved, typically because two neighbours share a location.
type SingularSystemError struct {
	Location  int
	Neighbors int
	Cond      float64
}

func (e *SingularSystemError) Error() string {
	return fmt.Sprintf("location %d: kriging system of %d neighbors is singular (condition %g)", e.Location, e.Neighbors, e.Cond)
}

func (e *SingularSystemError) Is(target error) bool { return target == ErrSingularSystem }

func (e *SingularSystemError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("location", e.Location).Int("neighbors", e.Neighbors).Float64("cond", e.Cond).
		Str("type", "SingularSystem")
}

func newSingularSystem(loc, neighbors int, cond float64) error {
	return errors.WithStack(&SingularSystemError{Location: loc, Neighbors: neighbors, Cond: cond})
}

// NegativeVarianceError reports a kriging variance below the floating point
// tolerance. The prediction keeps the computed numbers.
type NegativeVarianceError struct {
	Location int
	Variance float64
}

func (e *NegativeVarianceError) Error() string {
	return fmt.Sprintf("location %d: negative kriging variance %g (ill-conditioned system)", e.Location, e.Variance)
}

func (e *NegativeVarianceError) Is(target error) bool { return target == ErrNegativeVariance }

func (e *NegativeVarianceError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("location", e.Location).Float64("variance", e.Variance).Str("type", "NegativeVariance")
}

// InfeasibleFitParametersError rejects an initial guess that violates the
// nugget, sill, range or anisotropy constraints.
type InfeasibleFitParametersError struct {
	Param string
	Value float64
	Rule  string
}

func (e *InfeasibleFitParametersError) Error() string {
	return fmt.Sprintf("infeasible variogram parameter %s=%g: must be %s", e.Param, e.Value, e.Rule)
}

func (e *InfeasibleFitParametersError) Is(target error) bool {
	return target == ErrInfeasibleParameters
}

func (e *InfeasibleFitParametersError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("param", e.Param).Float64("value", e.Value).Str("rule", e.Rule).Str("type", "InfeasibleFitParameters")
}

func newInfeasible(param string, value float64, rule string) error {
	return errors.WithStack(&InfeasibleFitParametersError{Param: param, Value: value, Rule: rule})
}

// FitDidNotConvergeError is returned together with the best parameters found
// when the iteration budget runs out.
type FitDidNotConvergeError struct {
	Iterations int
	SSE        float64
	Best       VariogramModel
}

func (e *FitDidNotConvergeError) Error() string {
	return fmt.Sprintf("variogram fit did not converge after %d iterations (weighted SSE %g)", e.Iterations, e.SSE)
}

func (e *FitDidNotConvergeError) Is(target error) bool { return target == ErrFitDidNotConverge }

func (e *FitDidNotConvergeError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("iterations", e.Iterations).Float64("sse", e.SSE).Str("shape", string(e.Best.Shape)).
		Str("type", "FitDidNotConverge")
}

// FitError reports a fit that could not improve on its initial guess.
type FitError struct {
	Reason string
}

func (e *FitError) Error() string { return "variogram fit failed: " + e.Reason }

func (e *FitError) Is(target error) bool { return target == ErrFit }

// MalformedDatasetError is fatal: nothing is computed on such a dataset.
type MalformedDatasetError struct {
	Sample int
	Reason string
}

func (e *MalformedDatasetError) Error() string {
	if e.Sample < 0 {
		return "malformed dataset: " + e.Reason
	}
	return fmt.Sprintf("malformed dataset: sample %d: %s", e.Sample, e.Reason)
}

func (e *MalformedDatasetError) Is(target error) bool { return target == ErrMalformedDataset }

func (e *MalformedDatasetError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("sample", e.Sample).Str("reason", e.Reason).Str("type", "MalformedDataset")
}

func newMalformed(sample int, format string, args ...interface{}) error {
	return errors.WithStack(&MalformedDatasetError{Sample: sample, Reason: fmt.Sprintf(format, args...)})
}

// ValidationError reports an option outside its domain.
type ValidationError struct {
	Param  string
	Reason string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid option %s: %s (got %v)", e.Param, e.Reason, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidOption }

func newValidation(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{Param: param, Reason: reason, Value: value})
}
