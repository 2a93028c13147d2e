package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// the happy path through a trip
	assert.True(t, CanTransition(StateSearching, StateDestinationSelected))
	assert.True(t, CanTransition(StateDestinationSelected, StateRoutesFound))
	assert.True(t, CanTransition(StateRoutesFound, StateNavigating))
	assert.True(t, CanTransition(StateNavigating, StateCompleted))
	assert.True(t, CanTransition(StateCompleted, StateSearching))

	// changing the destination from the route list
	assert.True(t, CanTransition(StateRoutesFound, StateDestinationSelected))

	// skipping phases is not allowed
	assert.False(t, CanTransition(StateSearching, StateRoutesFound))
	assert.False(t, CanTransition(StateSearching, StateNavigating))
	assert.False(t, CanTransition(StateDestinationSelected, StateNavigating))
	assert.False(t, CanTransition(StateRoutesFound, StateCompleted))
	assert.False(t, CanTransition(StateCompleted, StateNavigating))

	// navigation cannot fall back to route selection
	assert.False(t, CanTransition(StateNavigating, StateRoutesFound))
	assert.False(t, CanTransition(StateNavigating, StateDestinationSelected))
}

func TestCanTransitionSelfIsIdempotent(t *testing.T) {
	for _, s := range []State{StateSearching, StateDestinationSelected, StateRoutesFound, StateNavigating, StateCompleted} {
		assert.True(t, CanTransition(s, s), "state %s", s)
	}
}

func TestCanTransitionResetAlwaysAllowed(t *testing.T) {
	for _, s := range []State{StateSearching, StateDestinationSelected, StateRoutesFound, StateNavigating, StateCompleted} {
		assert.True(t, CanTransition(s, StateSearching), "state %s", s)
	}
}

func TestCanTransitionUnknownState(t *testing.T) {
	assert.False(t, CanTransition(State("bogus"), StateNavigating))
}
