// Package randvar draws independent samples from named parametric families
// using deterministic, per-particle random streams.
package randvar

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type Family string

const (
	FamilyConstant  Family = "constant"
	FamilyLogNormal Family = "lognormal"
	FamilyNormal    Family = "normal"
	FamilyPoisson   Family = "poisson"
	FamilyBinomial  Family = "binomial"
)

// Rander draws one sample per call.
type Rander interface {
	Rand() float64
}

// Spec names a distribution family together with its parameter vector:
// constant(v), lognormal(mulog, sdlog), normal(mu, sigma), poisson(lambda),
// binomial(n, p).
type Spec struct {
	Family Family    `json:"family"`
	Params []float64 `json:"params"`
}

// Sampler binds the spec to a random source. All parameters are validated
// here, before any simulation runs.
func (s Spec) Sampler(src rand.Source) (Rander, error) {
	for i, p := range s.Params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("family %s: parameter %d is not finite", s.Family, i)
		}
	}

	switch s.Family {
	case FamilyConstant:
		if len(s.Params) != 1 {
			return nil, arityError(s, 1)
		}
		return constant(s.Params[0]), nil
	case FamilyLogNormal:
		if len(s.Params) != 2 {
			return nil, arityError(s, 2)
		}
		if s.Params[1] <= 0 {
			return nil, fmt.Errorf("family %s: sdlog must be > 0, got %v", s.Family, s.Params[1])
		}
		return distuv.LogNormal{Mu: s.Params[0], Sigma: s.Params[1], Src: src}, nil
	case FamilyNormal:
		if len(s.Params) != 2 {
			return nil, arityError(s, 2)
		}
		if s.Params[1] <= 0 {
			return nil, fmt.Errorf("family %s: sigma must be > 0, got %v", s.Family, s.Params[1])
		}
		return distuv.Normal{Mu: s.Params[0], Sigma: s.Params[1], Src: src}, nil
	case FamilyPoisson:
		if len(s.Params) != 1 {
			return nil, arityError(s, 1)
		}
		if s.Params[0] <= 0 {
			return nil, fmt.Errorf("family %s: lambda must be > 0, got %v", s.Family, s.Params[0])
		}
		return distuv.Poisson{Lambda: s.Params[0], Src: src}, nil
	case FamilyBinomial:
		if len(s.Params) != 2 {
			return nil, arityError(s, 2)
		}
		n, p := s.Params[0], s.Params[1]
		if n < 0 || n != math.Floor(n) {
			return nil, fmt.Errorf("family %s: n must be a non-negative integer, got %v", s.Family, n)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("family %s: p must be in [0,1], got %v", s.Family, p)
		}
		return distuv.Binomial{N: n, P: p, Src: src}, nil
	default:
		return nil, fmt.Errorf("unsupported distribution family: %s", s.Family)
	}
}

func arityError(s Spec, want int) error {
	return fmt.Errorf("family %s expects %d parameters, got %d", s.Family, want, len(s.Params))
}

type constant float64

func (c constant) Rand() float64 { return float64(c) }

// Binomial draws one binomial sample without constructing a Spec. The
// probability must already be in [0,1].
func Binomial(src rand.Source, n int, p float64) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	return int(distuv.Binomial{N: float64(n), P: p, Src: src}.Rand())
}
