package stage

import (
	"errors"
	"fmt"
)

// ErrInvalidStageCombination is returned when the active logical stages
// cannot be expressed on the hardware pipeline.
var ErrInvalidStageCombination = errors.New("stage: invalid stage combination")

// CombinationError describes an unsatisfiable stage mapping.
type CombinationError struct {
	// Active is the set of active logical stages.
	Active ActiveSet

	// Target is the logical stage being resolved.
	Target LogicalStage

	// Reason explains which constraint failed.
	Reason string
}

// Error implements the error interface.
func (e *CombinationError) Error() string {
	return fmt.Sprintf("stage: cannot map %s with active %s: %s", e.Target, e.Active, e.Reason)
}

// Is reports whether target is ErrInvalidStageCombination.
func (e *CombinationError) Is(target error) bool {
	return target == ErrInvalidStageCombination
}

func invalid(active ActiveSet, target LogicalStage, reason string) error {
	return &CombinationError{Active: active, Target: target, Reason: reason}
}

// ResolveHardwareStage returns the hardware stage that runs target given the
// set of active logical stages. The result depends only on the inputs.
func ResolveHardwareStage(active ActiveSet, target LogicalStage) (HardwareStage, error) {
	if target >= NumLogicalStages {
		return 0, invalid(active, target, "unknown logical stage")
	}
	if !active.Has(target) {
		return 0, invalid(active, target, "stage is not active")
	}
	if active.Has(CS) && active != NewActiveSet(CS) {
		return 0, invalid(active, target, "compute cannot be combined with graphics stages")
	}

	tess := active.Has(TCS) || active.Has(TES)
	if tess && !(active.Has(TCS) && active.Has(TES)) {
		return 0, invalid(active, target, "tessellation requires both TCS and TES")
	}

	switch target {
	case VS:
		switch {
		case tess:
			return Local, nil
		case active.Has(GS):
			return Export, nil
		default:
			return Vertex, nil
		}
	case TCS:
		if !active.Has(VS) {
			return 0, invalid(active, target, "TCS requires VS")
		}
		return Hull, nil
	case TES:
		if !active.Has(VS) {
			return 0, invalid(active, target, "TES requires VS")
		}
		if active.Has(GS) {
			return Export, nil
		}
		return Vertex, nil
	case GS:
		if !active.Has(VS) {
			return 0, invalid(active, target, "GS requires VS")
		}
		if !active.Has(GSCopy) {
			return 0, invalid(active, target, "GS requires a copy shader")
		}
		return Geometry, nil
	case GSCopy:
		if !active.Has(GS) {
			return 0, invalid(active, target, "copy shader requires an active GS")
		}
		return Vertex, nil
	case FS:
		return Fragment, nil
	case CS:
		return Compute, nil
	}
	return 0, invalid(active, target, "unreachable")
}

// ResolveAll maps every active logical stage to its hardware stage.
// It fails on the first stage that cannot be mapped.
func ResolveAll(active ActiveSet) (map[LogicalStage]HardwareStage, error) {
	out := make(map[LogicalStage]HardwareStage, NumLogicalStages)
	for _, st := range active.Stages() {
		hw, err := ResolveHardwareStage(active, st)
		if err != nil {
			return nil, err
		}
		out[st] = hw
	}
	return out, nil
}
