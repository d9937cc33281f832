package pathology

import (
	"fmt"
	"log"
	"sync"
)

// Change type and action enumerations.
const (
	ChangeRelative = "relative"
	ChangeAbsolute = "absolute"

	ActionSet   = "set"
	ActionDecay = "decay"

	CategoryContinuous = "continuous"
	CategoryLimited    = "limited"
	CategoryOnce       = "once"
)

// Change is one parameter mutation carried by an event. Relative changes
// operate on the percent scale of a Mapper; absolute changes operate on raw
// values. ActionSet assigns the value, ActionDecay adds it on every
// application, producing a ramp for repeating events.
type Change struct {
	Parameter  string
	ChangeType string
	Action     string
	Value      float64
}

// Event is a queued pathology scenario step. Continuous events repeat every
// Interval seconds until removed externally; limited events repeat Count
// times and then restore the values their parameters had before the first
// application; once events apply a single permanent change.
type Event struct {
	Type         string
	TimeCategory string
	Interval     float64
	Count        int
	Changes      []Change

	next      float64
	started   bool
	expiring  bool
	originals map[string]float64
}

// Applier is the runtime-side sink for parameter changes. Current and Set
// report whether the name is known; unknown names surface as dropped
// changes, never as failures.
type Applier interface {
	Current(name string) (float64, bool)
	Set(name string, value float64) bool
}

// UnknownActionError reports a malformed change action. The whole carrying
// event is dropped.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("pathology: unknown change action %q", e.Action)
}

// Injector is the FIFO event queue. Enqueue may be called from any
// goroutine; ApplyDue is called by the single simulation thread before each
// integration step, preserving enqueue order.
type Injector struct {
	mu     sync.Mutex
	queue  []*Event
	mapper Mapper
	logger *log.Logger
}

// NewInjector creates an empty queue using the given mapper for relative
// changes.
func NewInjector(mapper Mapper, logger *log.Logger) *Injector {
	if logger == nil {
		logger = log.Default()
	}
	return &Injector{mapper: mapper, logger: logger}
}

// Enqueue appends an event to the queue.
func (in *Injector) Enqueue(e *Event) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.queue = append(in.queue, e)
}

// Pending returns the number of queued events.
func (in *Injector) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// ApplyDue applies every event due at simulation time now, in FIFO order,
// and returns the names of all parameters touched so the caller can
// re-derive cached coefficients. A limited event whose count is exhausted
// holds its last change for one more interval, then restores its parameters
// to their pre-event values and leaves the queue. Events with an unknown
// action are dropped whole; changes naming an unknown parameter are dropped
// individually.
func (in *Injector) ApplyDue(now float64, a Applier) []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	var touched []string
	kept := in.queue[:0]
	for _, e := range in.queue {
		if e.started && now < e.next {
			kept = append(kept, e)
			continue
		}

		if e.expiring {
			touched = append(touched, in.restore(e, a)...)
			continue
		}

		names, err := in.apply(e, a)
		touched = append(touched, names...)
		if err != nil {
			in.logger.Printf("pathology: dropping event: %v", err)
			continue
		}

		e.started = true
		e.next = now + e.Interval

		switch e.TimeCategory {
		case CategoryOnce:
			// Applied once, change persists, leaves the queue.
			continue
		case CategoryLimited:
			e.Count--
			if e.Count <= 0 {
				e.expiring = true
			}
		}
		kept = append(kept, e)
	}
	in.queue = kept
	return touched
}

func (in *Injector) apply(e *Event, a Applier) ([]string, error) {
	var touched []string
	for i := range e.Changes {
		ch := &e.Changes[i]

		cur, known := a.Current(ch.Parameter)
		if !known {
			in.logger.Printf("pathology: unknown parameter %q, change dropped",
				ch.Parameter)
			continue
		}

		var target float64
		switch ch.ChangeType {
		case ChangeAbsolute:
			switch ch.Action {
			case ActionSet:
				target = ch.Value
			case ActionDecay:
				target = cur + ch.Value
			default:
				return touched, &UnknownActionError{Action: ch.Action}
			}
		case ChangeRelative:
			pct, err := in.mapper.PercentOf(cur, ch.Parameter)
			if err != nil {
				in.logger.Printf("pathology: %v, change dropped", err)
				continue
			}
			spline, err := in.mapper.Spline(ch.Parameter)
			if err != nil {
				in.logger.Printf("pathology: %v, change dropped", err)
				continue
			}
			switch ch.Action {
			case ActionSet:
				target = spline(ch.Value)
			case ActionDecay:
				target = spline(pct + ch.Value)
			default:
				return touched, &UnknownActionError{Action: ch.Action}
			}
		default:
			return touched, fmt.Errorf(
				"pathology: unknown change type %q", ch.ChangeType)
		}

		if e.TimeCategory == CategoryLimited {
			if e.originals == nil {
				e.originals = make(map[string]float64)
			}
			if _, seen := e.originals[ch.Parameter]; !seen {
				e.originals[ch.Parameter] = cur
			}
		}

		if a.Set(ch.Parameter, target) {
			touched = append(touched, ch.Parameter)
		}
	}
	return touched, nil
}

func (in *Injector) restore(e *Event, a Applier) []string {
	var touched []string
	for name, v := range e.originals {
		if a.Set(name, v) {
			touched = append(touched, name)
		}
	}
	return touched
}
