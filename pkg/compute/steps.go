package compute

import (
	"errors"

	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"github.com/klothoplatform/infratopo/pkg/provider/aws/resources"
)

func bound(v float64) *float64 { return &v }

// DefaultSteps scales in by one below 1% utilization, out by one from 10% and out by three from 60%.
func DefaultSteps() []resources.ScalingStep {
	return []resources.ScalingStep{
		{Upper: bound(1), Change: -1},
		{Lower: bound(10), Change: +1},
		{Lower: bound(60), Change: +3},
	}
}

// ResolveSteps checks a step scaling definition and returns it with every implicit bound made explicit.
//
// Steps are given in ascending order. A step without an upper bound ends where the next step begins, and a
// step without a lower bound (other than the first) begins where the previous one ends. Only the first
// step may be open below and only the last open above. Gaps between steps are allowed, overlaps are not.
func ResolveSteps(steps []resources.ScalingStep) ([]resources.ScalingStep, error) {
	resolved := make([]resources.ScalingStep, len(steps))
	var errs error
	for i, step := range steps {
		r := resources.ScalingStep{Lower: step.Lower, Upper: step.Upper, Change: step.Change}
		if step.Lower == nil && step.Upper == nil {
			errs = errors.Join(errs, topo_errs.Configf(component, "steps", "step %d has no bounds", i))
			continue
		}
		if step.Change == 0 {
			errs = errors.Join(errs, topo_errs.Configf(component, "steps", "step %d does not change capacity", i))
		}
		if r.Upper == nil && i+1 < len(steps) {
			if steps[i+1].Lower == nil {
				errs = errors.Join(errs, topo_errs.Configf(component, "steps",
					"step %d has no upper bound and step %d has no lower bound, the boundary between them is ambiguous", i, i+1))
				continue
			}
			r.Upper = steps[i+1].Lower
		}
		if r.Lower == nil && i > 0 {
			r.Lower = resolved[i-1].Upper
		}
		if r.Lower != nil && r.Upper != nil && *r.Lower >= *r.Upper {
			errs = errors.Join(errs, topo_errs.Configf(component, "steps", "step %d is empty or out of order: %s", i, r))
		}
		if i > 0 {
			prev := resolved[i-1]
			switch {
			case r.Lower == nil:
				errs = errors.Join(errs, topo_errs.Configf(component, "steps", "only the first step may be open below, step %d is %s", i, r))
			case prev.Upper != nil && *r.Lower < *prev.Upper:
				errs = errors.Join(errs, topo_errs.Configf(component, "steps", "step %d %s overlaps step %d %s", i, r, i-1, prev))
			}
		}
		resolved[i] = r
	}
	if errs != nil {
		return nil, errs
	}
	return resolved, nil
}

// StepFor returns the capacity change for a metric value, and false when no step covers it.
func StepFor(steps []resources.ScalingStep, value float64) (int, bool) {
	for _, step := range steps {
		if step.Lower != nil && value < *step.Lower {
			continue
		}
		if step.Upper != nil && value >= *step.Upper {
			continue
		}
		return step.Change, true
	}
	return 0, false
}
