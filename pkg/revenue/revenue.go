// Package revenue reconciles a regulatory revenue-requirement total against
// the marginal-cost change induced by demand shifting. This is a policy
// switch, not a data transform: the two policies encode different economic
// claims and the operator must pick one explicitly.
package revenue

import (
	"fmt"
)

// Policy selects how the revenue requirement reacts to marginal-cost
// savings.
type Policy string

const (
	// PolicyFrozenResidual freezes the residual (embedded-cost) component at
	// its pre-shift value; total revenue floats with realized marginal-cost
	// savings.
	PolicyFrozenResidual Policy = "frozen_residual"
	// PolicyFixedRR keeps the revenue requirement fixed; the residual
	// component floats to absorb the marginal-cost change.
	PolicyFixedRR Policy = "fixed_rr"
)

// Valid reports whether the policy is one of the supported values.
func (p Policy) Valid() bool {
	return p == PolicyFrozenResidual || p == PolicyFixedRR
}

// Reconciliation is the outcome of applying a policy.
type Reconciliation struct {
	Policy             Policy  `json:"policy"`
	MCOriginal         float64 `json:"mcOriginal"`
	MCShifted          float64 `json:"mcShifted"`
	RevenueRequirement float64 `json:"revenueRequirement"`
	Residual           float64 `json:"residual"`
	NewRequirement     float64 `json:"newRequirement"`
}

// Reconcile applies the chosen policy to the pre/post-shift marginal-cost
// totals and the revenue-requirement target.
func Reconcile(p Policy, mcOriginal, mcShifted, rr float64) (Reconciliation, error) {
	r := Reconciliation{
		Policy:             p,
		MCOriginal:         mcOriginal,
		MCShifted:          mcShifted,
		RevenueRequirement: rr,
	}
	switch p {
	case PolicyFrozenResidual:
		r.Residual = rr - mcOriginal
		r.NewRequirement = mcShifted + r.Residual
	case PolicyFixedRR:
		r.Residual = rr - mcShifted
		r.NewRequirement = rr
	default:
		return Reconciliation{}, fmt.Errorf("unknown revenue policy: %q", p)
	}
	return r, nil
}
