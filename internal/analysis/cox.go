// Package analysis fits the exploratory models over the delay dataset: a
// proportional-hazards model of time-to-first-evacuation-order and a
// Getis-Ord Gi* scan for county clusters of delayed response. Both are
// advisory; their failure never fails the pipeline.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData marks a degenerate model input: no events, all
// observations censored, a constant covariate, or a singular information
// matrix. Callers report it as a warning, not a failure.
var ErrInsufficientData = errors.New("analysis: insufficient data for model fit")

// Subject is one fire in the survival model. DurationHours is time from
// fire start to the first evacuation order, or to the end of the
// observation window when no order was confirmed (right-censored).
type Subject struct {
	DurationHours float64
	ObservedEvent bool
	Covariates    []float64
}

// Covariate is one fitted model term. CILower/CIUpper bound the hazard
// ratio at 95% confidence.
type Covariate struct {
	Name        string  `json:"name"`
	Coefficient float64 `json:"coefficient"`
	HazardRatio float64 `json:"hazard_ratio"`
	SE          float64 `json:"se"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
	Z           float64 `json:"z"`
	P           float64 `json:"p"`
}

// CoxModel is a fitted proportional-hazards model.
type CoxModel struct {
	Covariates []Covariate `json:"covariates"`
	Events     int         `json:"events"`
	Censored   int         `json:"censored"`
	Iterations int         `json:"iterations"`
}

const (
	maxNewtonIterations = 50
	newtonTolerance     = 1e-7
)

// FitCoxPH fits a Cox proportional-hazards model with Breslow tie handling
// by Newton-Raphson on the partial likelihood. Covariates are standardized
// internally for numeric stability and the coefficients mapped back to the
// original scale, so reported hazard ratios are per covariate unit.
func FitCoxPH(names []string, subjects []Subject) (*CoxModel, error) {
	p := len(names)
	if p == 0 || len(subjects) < p+2 {
		return nil, ErrInsufficientData
	}
	for _, s := range subjects {
		if len(s.Covariates) != p {
			return nil, fmt.Errorf("analysis: subject has %d covariates, want %d", len(s.Covariates), p)
		}
	}

	events := 0
	for _, s := range subjects {
		if s.ObservedEvent {
			events++
		}
	}
	if events < p+1 {
		// All-censored and near-all-censored data cannot identify p terms.
		return nil, ErrInsufficientData
	}

	std, means, sds, err := standardize(subjects, p)
	if err != nil {
		return nil, err
	}
	_ = means // centering shifts only the baseline hazard

	// Ascending duration; the risk set at an event time is the tail.
	order := make([]int, len(std))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return std[order[a]].DurationHours < std[order[b]].DurationHours
	})
	sorted := make([]Subject, len(std))
	for i, idx := range order {
		sorted[i] = std[idx]
	}

	beta := make([]float64, p)
	var info *mat.SymDense
	iterations := 0
	for iter := 0; iter < maxNewtonIterations; iter++ {
		iterations = iter + 1
		grad, hess := breslowDerivatives(sorted, beta, p)
		info = hess

		var chol mat.Cholesky
		if !chol.Factorize(hess) {
			return nil, ErrInsufficientData
		}
		step := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, grad)); err != nil {
			return nil, ErrInsufficientData
		}

		maxStep := 0.0
		for j := 0; j < p; j++ {
			beta[j] += step.AtVec(j)
			if s := math.Abs(step.AtVec(j)); s > maxStep {
				maxStep = s
			}
		}
		if maxStep < newtonTolerance {
			break
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(info) {
		return nil, ErrInsufficientData
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, ErrInsufficientData
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	z975 := normal.Quantile(0.975)

	model := &CoxModel{
		Covariates: make([]Covariate, p),
		Events:     events,
		Censored:   len(subjects) - events,
		Iterations: iterations,
	}
	for j := 0; j < p; j++ {
		// Map from standardized back to original covariate scale.
		coef := beta[j] / sds[j]
		se := math.Sqrt(cov.At(j, j)) / sds[j]
		z := coef / se
		model.Covariates[j] = Covariate{
			Name:        names[j],
			Coefficient: coef,
			HazardRatio: math.Exp(coef),
			SE:          se,
			CILower:     math.Exp(coef - z975*se),
			CIUpper:     math.Exp(coef + z975*se),
			Z:           z,
			P:           2 * normal.Survival(math.Abs(z)),
		}
	}
	return model, nil
}

// standardize returns subjects with zero-mean unit-variance covariates.
// A constant covariate has no information and degenerates the fit.
func standardize(subjects []Subject, p int) ([]Subject, []float64, []float64, error) {
	n := float64(len(subjects))
	means := make([]float64, p)
	sds := make([]float64, p)

	for _, s := range subjects {
		for j, v := range s.Covariates {
			means[j] += v / n
		}
	}
	for _, s := range subjects {
		for j, v := range s.Covariates {
			d := v - means[j]
			sds[j] += d * d / n
		}
	}
	for j := range sds {
		sds[j] = math.Sqrt(sds[j])
		if sds[j] == 0 || math.IsNaN(sds[j]) {
			return nil, nil, nil, ErrInsufficientData
		}
	}

	out := make([]Subject, len(subjects))
	for i, s := range subjects {
		covs := make([]float64, p)
		for j, v := range s.Covariates {
			covs[j] = (v - means[j]) / sds[j]
		}
		out[i] = Subject{DurationHours: s.DurationHours, ObservedEvent: s.ObservedEvent, Covariates: covs}
	}
	return out, means, sds, nil
}

// breslowDerivatives computes the partial-likelihood gradient and the
// observed information matrix (negative Hessian) under Breslow's treatment
// of tied event times. Subjects must be in ascending duration order; the
// risk-set sums accumulate from the longest duration down.
func breslowDerivatives(sorted []Subject, beta []float64, p int) ([]float64, *mat.SymDense) {
	grad := make([]float64, p)
	hess := mat.NewSymDense(p, nil)

	// Running risk-set accumulators.
	s0 := 0.0
	s1 := make([]float64, p)
	s2 := mat.NewSymDense(p, nil)

	i := len(sorted) - 1
	for i >= 0 {
		// Add every subject whose duration ties this one to the risk set.
		t := sorted[i].DurationHours
		j := i
		for j >= 0 && sorted[j].DurationHours == t {
			w := math.Exp(dot(beta, sorted[j].Covariates))
			s0 += w
			for a := 0; a < p; a++ {
				s1[a] += w * sorted[j].Covariates[a]
				for b := a; b < p; b++ {
					s2.SetSym(a, b, s2.At(a, b)+w*sorted[j].Covariates[a]*sorted[j].Covariates[b])
				}
			}
			j--
		}

		// Score the events at this time against the accumulated risk set.
		for e := j + 1; e <= i; e++ {
			if !sorted[e].ObservedEvent {
				continue
			}
			for a := 0; a < p; a++ {
				grad[a] += sorted[e].Covariates[a] - s1[a]/s0
				for b := a; b < p; b++ {
					hess.SetSym(a, b, hess.At(a, b)+s2.At(a, b)/s0-s1[a]*s1[b]/(s0*s0))
				}
			}
		}
		i = j
	}
	return grad, hess
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
