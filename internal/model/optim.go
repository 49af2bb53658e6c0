package model

import (
	"fmt"
	"math"
)

// Adam implements the Adam optimizer with bias correction
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t    int
	m, v [][]float64
}

// NewAdam returns Adam with the usual betas and epsilon
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Step updates params in place from grads
func (a *Adam) Step(params [][]float64, grads [][]float64) error {
	if len(params) != len(grads) {
		return fmt.Errorf("%d parameter tensors but %d gradients", len(params), len(grads))
	}
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}

	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		g := grads[i]
		if len(g) != len(p) {
			return fmt.Errorf("gradient %d has %d values for %d parameters", i, len(g), len(p))
		}
		m, v := a.m[i], a.v[i]
		for j := range p {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			p[j] -= a.LR * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
	}
	return nil
}

// CosineAnnealing sets the learning rate to
// etaMin + (base - etaMin)(1 + cos(pi t / TMax)) / 2 after every Step.
type CosineAnnealing struct {
	opt    *Adam
	base   float64
	etaMin float64
	tMax   int
	t      int
}

// NewCosineAnnealing schedules opt starting from its current learning rate
func NewCosineAnnealing(opt *Adam, tMax int, etaMin float64) *CosineAnnealing {
	return &CosineAnnealing{opt: opt, base: opt.LR, etaMin: etaMin, tMax: max(tMax, 1)}
}

// LRAt returns the scheduled learning rate at step t
func (s *CosineAnnealing) LRAt(t int) float64 {
	return s.etaMin + (s.base-s.etaMin)*(1+math.Cos(math.Pi*float64(t)/float64(s.tMax)))/2
}

// Step advances the schedule by one and applies the new rate
func (s *CosineAnnealing) Step() {
	s.t++
	s.opt.LR = s.LRAt(s.t)
}

// LR returns the current learning rate
func (s *CosineAnnealing) LR() float64 { return s.opt.LR }
