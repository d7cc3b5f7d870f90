// Package hooking defines the ordered, synchronous observer mechanism used by
// every procsim component.
package hooking

// HookPos names a point in a component where hooks run.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation of the hooks of a component.
type HookCtx struct {
	// Domain is the component that invokes the hooks.
	Domain Hookable

	// Now is the simulated time of the invocation.
	Now float64

	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is implemented by components that hooks can observe.
type Hookable interface {
	AcceptHook(hook Hook)

	// RemoveHook unregisters a hook. Removing a hook that is not registered
	// is a no-op.
	RemoveHook(hook Hook)

	NumHooks() int

	// Hooks lists the registered hooks in registration order.
	Hooks() []Hook
}

// A Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook. HookFuncs are compared by
// pointer, so keep the returned value if it needs to be removed later.
type HookFunc func(ctx HookCtx)

type funcHook struct {
	f HookFunc
}

func (h *funcHook) Func(ctx HookCtx) {
	h.f(ctx)
}

// NewHookFunc wraps f into a Hook.
func NewHookFunc(f HookFunc) Hook {
	return &funcHook{f: f}
}

// HookableBase implements Hookable and is embedded by components. Hooks run
// in the order they were accepted.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns how many hooks are registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, registered := range h.hooks {
		if registered == hook {
			panic("hooking: duplicated hook")
		}
	}

	h.hooks = append(h.hooks, hook)
}

// RemoveHook unregisters a hook while keeping the order of the others.
func (h *HookableBase) RemoveHook(hook Hook) {
	for i, registered := range h.hooks {
		if registered == hook {
			h.hooks = append(h.hooks[:i:i], h.hooks[i+1:]...)
			return
		}
	}
}

// InvokeHook runs every registered hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
