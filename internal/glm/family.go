// Package glm fits the generalized linear models the pipeline needs:
// IRLS for binomial and Poisson responses, and an elastic-net penalized
// logistic path by cyclic coordinate descent.
package glm

import "math"

// family is an exponential family with its canonical link
type family interface {
	// start returns the initial mean for a response value
	start(y float64) float64
	link(mu float64) float64
	inverse(eta float64) float64
	// variance doubles as the IRLS weight under the canonical link
	variance(mu float64) float64
	deviance(y, mu float64) float64
}

const (
	probEps = 1e-10
	etaMax  = 700
)

type binomial struct{}

func (binomial) start(y float64) float64 { return (y + 0.5) / 2 }

func (binomial) link(mu float64) float64 { return math.Log(mu / (1 - mu)) }

func (binomial) inverse(eta float64) float64 {
	mu := Sigmoid(eta)
	return math.Min(math.Max(mu, probEps), 1-probEps)
}

func (binomial) variance(mu float64) float64 { return mu * (1 - mu) }

func (binomial) deviance(y, mu float64) float64 {
	d := 0.0
	if y > 0 {
		d += y * math.Log(y/mu)
	}
	if y < 1 {
		d += (1 - y) * math.Log((1-y)/(1-mu))
	}
	return 2 * d
}

type poisson struct{}

func (poisson) start(y float64) float64 { return y + 0.1 }

func (poisson) link(mu float64) float64 { return math.Log(mu) }

func (poisson) inverse(eta float64) float64 {
	return math.Exp(math.Min(eta, etaMax))
}

func (poisson) variance(mu float64) float64 { return math.Max(mu, probEps) }

func (poisson) deviance(y, mu float64) float64 {
	d := -(y - mu)
	if y > 0 {
		d += y * math.Log(y/mu)
	}
	return 2 * d
}

// Sigmoid is the logistic function, stable for large |eta|
func Sigmoid(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}
