package twin

// HookPos identifies a position in the simulation loop where hooks fire.
type HookPos struct {
	Name string
}

// HookPosBeforeStep triggers before event application and integration.
var HookPosBeforeStep = &HookPos{Name: "BeforeStep"}

// HookPosAfterStep triggers after the state has advanced one window and the
// observables are recomputed. Item carries the simulation time.
var HookPosAfterStep = &HookPos{Name: "AfterStep"}

// HookPosAfterReport triggers after an averaged-vitals record is emitted.
// Item carries the vitals.Record.
var HookPosAfterReport = &HookPos{Name: "AfterReport"}

// HookCtx holds the information about the site that triggered a hook.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
}

// Hookable is an object that accepts hooks.
type Hookable interface {
	AcceptHook(hook Hook)
}

// Hook is a short piece of program invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase provides hook registration and invocation for types that
// implement Hookable.
type HookableBase struct {
	Hooks []Hook
}

// NewHookableBase creates a HookableBase object.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.Hooks = make([]Hook, 0)
	return h
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.Hooks = append(h.Hooks, hook)
}

// InvokeHook triggers the registered hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.Hooks {
		hook.Func(ctx)
	}
}
