package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanTransition(t *testing.T) {
	tests := []struct {
		event IdentityEventType
		state IdentityState
		want  Transition
	}{
		{EventUserCreated, StateAbsent, TransitionCreate},
		{EventUserCreated, StatePresent, TransitionNoOp},
		{EventUserUpdated, StateAbsent, TransitionCreateFromUpdate},
		{EventUserUpdated, StatePresent, TransitionUpdate},
		{EventUserDeleted, StateAbsent, TransitionNoOp},
		{EventUserDeleted, StatePresent, TransitionDelete},
		{"session.created", StateAbsent, TransitionIgnore},
		{"session.created", StatePresent, TransitionIgnore},
	}

	for _, tt := range tests {
		got := PlanTransition(tt.event, tt.state)
		assert.Equal(t, tt.want, got, "%s while %s", tt.event, tt.state)
	}
}

// Every handled event converges to the same state no matter where it starts,
// which is what makes redelivery and reordering safe.
func TestPlanTransition_Converges(t *testing.T) {
	want := map[IdentityEventType]IdentityState{
		EventUserCreated: StatePresent,
		EventUserUpdated: StatePresent,
		EventUserDeleted: StateAbsent,
	}
	for event, target := range want {
		for _, from := range []IdentityState{StateAbsent, StatePresent} {
			tr := PlanTransition(event, from)
			assert.Equal(t, target, tr.Target(from), "%s from %s", event, from)
			assert.Equal(t, target, PlanTransition(event, target).Target(target), "%s applied twice", event)
		}
	}
}

func TestIdentityPayload_DisplayName(t *testing.T) {
	s := func(v string) *string { return &v }

	tests := []struct {
		name        string
		first, last *string
		want        *string
	}{
		{"both", s("Ada"), s("Lovelace"), s("Ada Lovelace")},
		{"first only", s("Ada"), nil, s("Ada")},
		{"last only", nil, s("Lovelace"), s("Lovelace")},
		{"empty first", s(""), s("Lovelace"), s("Lovelace")},
		{"none", nil, nil, nil},
		{"both empty", s(""), s(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := IdentityPayload{FirstName: tt.first, LastName: tt.last}
			assert.Equal(t, tt.want, p.DisplayName())
		})
	}
}

func TestIdentityPayload_PrimaryEmail(t *testing.T) {
	assert.Nil(t, IdentityPayload{}.PrimaryEmail())

	p := IdentityPayload{EmailAddresses: []EmailAddress{
		{ID: "e1", EmailAddress: "first@example.com"},
		{ID: "e2", EmailAddress: "second@example.com"},
	}}
	email := p.PrimaryEmail()
	if assert.NotNil(t, email) {
		assert.Equal(t, "first@example.com", *email)
	}
}

func TestIdentityPayload_Patch(t *testing.T) {
	patch := IdentityPayload{ID: "user_1"}.Patch()

	// An update without email or names clears them rather than leaving them.
	assert.True(t, patch.Email.Set)
	assert.Nil(t, patch.Email.Value)
	assert.True(t, patch.DisplayName.Set)
	assert.Nil(t, patch.DisplayName.Value)
}
