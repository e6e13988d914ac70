package statemachine

import (
	"reflect"
	"sync"
)

// StateFn is a state in Rob Pike's state-function pattern: the state is the
// function, and running it yields the next state (or nil to terminate).
type StateFn[T any] func(*T) StateFn[T]

// StateMachine drives an entity through StateFn transitions. It only guards
// the current-state pointer; callers serialise the entity itself.
type StateMachine[T any] struct {
	entity  *T
	stateFn StateFn[T]
	mu      sync.RWMutex
}

// NewStateMachine creates a state machine starting in initial.
func NewStateMachine[T any](entity *T, initial StateFn[T]) *StateMachine[T] {
	return &StateMachine[T]{entity: entity, stateFn: initial}
}

// Dispatch sets the given state as current, runs it once and stores the state
// it returns.
func (sm *StateMachine[T]) Dispatch(stateFn StateFn[T]) {
	sm.mu.Lock()
	sm.stateFn = stateFn
	sm.mu.Unlock()

	if stateFn == nil {
		return
	}
	next := stateFn(sm.entity)

	sm.mu.Lock()
	sm.stateFn = next
	sm.mu.Unlock()
}

// Current returns the current state function; nil means terminated.
func (sm *StateMachine[T]) Current() StateFn[T] {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stateFn
}

// In reports whether the machine currently sits in the given state. Function
// values are not comparable in Go, so this goes through the function pointer.
func (sm *StateMachine[T]) In(stateFn StateFn[T]) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.stateFn == nil || stateFn == nil {
		return sm.stateFn == nil && stateFn == nil
	}
	return reflect.ValueOf(sm.stateFn).Pointer() == reflect.ValueOf(stateFn).Pointer()
}
