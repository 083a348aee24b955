package loop

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// SetStart places the start marker.
type SetStart struct{ Time float64 }

// SetEnd places the end marker. It needs a start marker to anchor to.
type SetEnd struct{ Time float64 }

// SetRange sets both markers at once, e.g. from a drag-selection on a waveform
// or from a saved segment.
type SetRange struct{ Start, End float64 }

// StartLoop activates looping over a Ready range.
type StartLoop struct{}

// StopLoop deactivates looping and keeps the markers.
type StopLoop struct{}

// Clear removes all markers.
type Clear struct{}

func (SetStart) isAction()  {}
func (SetEnd) isAction()    {}
func (SetRange) isAction()  {}
func (StartLoop) isAction() {}
func (StopLoop) isAction()  {}
func (Clear) isAction()     {}

// Reduce applies a to s and returns the next state. It has no side effects.
// Transitions that are not allowed from s return s unchanged.
//
// End is not required to be greater than Start.
func Reduce(s State, a Action) State {
	if s == nil {
		s = Idle{}
	}

	switch act := a.(type) {
	case Clear:
		return Idle{}

	case SetRange:
		return Ready{Start: act.Start, End: act.End}

	case SetStart:
		if _, ok := s.(Idle); ok {
			return StartSet{Start: act.Time}
		}
		return s

	case SetEnd:
		switch cur := s.(type) {
		case StartSet:
			return Ready{Start: cur.Start, End: act.Time}
		case Ready:
			return Ready{Start: cur.Start, End: act.Time}
		case Looping:
			return Looping{Start: cur.Start, End: act.Time}
		}
		return s

	case StartLoop:
		if cur, ok := s.(Ready); ok {
			return Looping(cur)
		}
		return s

	case StopLoop:
		if cur, ok := s.(Looping); ok {
			return Ready(cur)
		}
		return s
	}

	return s
}

// ParseAction builds an Action from its wire name. Unknown names return nil.
func ParseAction(name string, t, start, end float64) Action {
	switch name {
	case "set_start":
		return SetStart{Time: t}
	case "set_end":
		return SetEnd{Time: t}
	case "set_range":
		return SetRange{Start: start, End: end}
	case "start_loop":
		return StartLoop{}
	case "stop_loop":
		return StopLoop{}
	case "clear":
		return Clear{}
	}
	return nil
}
