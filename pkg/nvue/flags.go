package nvue

import "strings"

// EffectiveFlags is what a session actually does once option overrides
// have been applied.
type EffectiveFlags struct {
	Apply        bool
	Detach       bool
	ApplyOptions []string
}

// ResolveEffectiveFlags derives the effective apply/detach decision and
// the extra "config apply" options from a request. Confirm-derived
// overrides are applied first, then atomic.
func ResolveEffectiveFlags(req *Request) EffectiveFlags {
	f := EffectiveFlags{
		Apply:  req.Apply,
		Detach: req.Detach,
	}

	if req.Confirm {
		f.Apply = true
		timeout := req.ConfirmTimeout
		if timeout == "" {
			timeout = DefaultConfirmTimeout
		}
		f.ApplyOptions = append(f.ApplyOptions, "--confirm", timeout)
	}
	if req.ConfirmYes {
		f.ApplyOptions = append(f.ApplyOptions, "--confirm-yes")
	}
	if req.ConfirmNo {
		f.ApplyOptions = append(f.ApplyOptions, "--confirm-no")
	}

	if req.Atomic {
		f.Apply = true
		f.Detach = true
	}
	return f
}

// ApplyCommand returns the nv command line for the apply phase.
func (f EffectiveFlags) ApplyCommand() string {
	parts := append([]string{"config", "apply", "--assume-yes"}, f.ApplyOptions...)
	return strings.Join(parts, " ")
}
