package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct {
	runs int
}

func running(c *counter) StateFn[counter] {
	c.runs++
	return running
}

func stopped(c *counter) StateFn[counter] {
	return nil
}

func TestDispatchRunsStateOnce(t *testing.T) {
	c := &counter{}
	sm := NewStateMachine(c, running)
	assert.True(t, sm.In(running))
	assert.Equal(t, 0, c.runs, "construction does not run the state")

	sm.Dispatch(running)
	assert.Equal(t, 1, c.runs)
	assert.True(t, sm.In(running), "a self-returning state stays current")
}

func TestDispatchToTerminal(t *testing.T) {
	c := &counter{}
	sm := NewStateMachine(c, running)

	sm.Dispatch(stopped)
	assert.Nil(t, sm.Current())
	assert.True(t, sm.In(nil))
	assert.False(t, sm.In(running))
}

func TestDispatchNil(t *testing.T) {
	c := &counter{}
	sm := NewStateMachine(c, running)

	sm.Dispatch(nil)
	assert.Equal(t, 0, c.runs)
	assert.True(t, sm.In(nil))
}
