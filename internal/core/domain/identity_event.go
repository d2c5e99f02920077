package domain

import "strings"

// IdentityEventType is the provider's event name.
type IdentityEventType string

const (
	EventUserCreated IdentityEventType = "user.created"
	EventUserUpdated IdentityEventType = "user.updated"
	EventUserDeleted IdentityEventType = "user.deleted"
)

// IdentityState is the local state of one external identity.
type IdentityState string

const (
	StateAbsent  IdentityState = "absent"
	StatePresent IdentityState = "present"
)

// Transition is the action taken for an event given the identity's state.
type Transition string

const (
	TransitionCreate Transition = "create"
	TransitionUpdate Transition = "update"
	TransitionDelete Transition = "delete"
	// TransitionCreateFromUpdate provisions an identity from an update that
	// arrived before its create event.
	TransitionCreateFromUpdate Transition = "create_from_update"
	// TransitionNoOp is a duplicate or stale event with nothing left to do.
	TransitionNoOp Transition = "noop"
	// TransitionIgnore is an event type this service does not consume.
	TransitionIgnore Transition = "ignore"
)

var identityTransitions = map[IdentityEventType]map[IdentityState]Transition{
	EventUserCreated: {
		StateAbsent:  TransitionCreate,
		StatePresent: TransitionNoOp,
	},
	EventUserUpdated: {
		StateAbsent:  TransitionCreateFromUpdate,
		StatePresent: TransitionUpdate,
	},
	EventUserDeleted: {
		StateAbsent:  TransitionNoOp,
		StatePresent: TransitionDelete,
	},
}

// Handled reports whether events of this type change identity state.
func (t IdentityEventType) Handled() bool {
	_, ok := identityTransitions[t]
	return ok
}

// PlanTransition returns the transition for an event of type t observed
// while the identity is in state s.
func PlanTransition(t IdentityEventType, s IdentityState) Transition {
	byState, ok := identityTransitions[t]
	if !ok {
		return TransitionIgnore
	}
	return byState[s]
}

// Target returns the state reached after applying tr from s.
func (tr Transition) Target(s IdentityState) IdentityState {
	switch tr {
	case TransitionCreate, TransitionCreateFromUpdate, TransitionUpdate:
		return StatePresent
	case TransitionDelete:
		return StateAbsent
	}
	return s
}

// EmailAddress is one entry of the provider's address list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// IdentityPayload is the user object carried by identity events.
type IdentityPayload struct {
	ID             string         `json:"id"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	Deleted        bool           `json:"deleted,omitempty"`
}

// IdentityEvent is a verified webhook event.
type IdentityEvent struct {
	Type IdentityEventType `json:"type"`
	Data IdentityPayload   `json:"data"`
}

// PrimaryEmail returns the first listed address, or nil if there is none.
func (p IdentityPayload) PrimaryEmail() *string {
	if len(p.EmailAddresses) == 0 || p.EmailAddresses[0].EmailAddress == "" {
		return nil
	}
	email := p.EmailAddresses[0].EmailAddress
	return &email
}

// DisplayName joins the non-empty name parts with a space, or returns nil
// when both are empty.
func (p IdentityPayload) DisplayName() *string {
	parts := make([]string, 0, 2)
	for _, part := range []*string{p.FirstName, p.LastName} {
		if part != nil && *part != "" {
			parts = append(parts, *part)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, " ")
	return &name
}

// NewUser maps the payload to the fields provisioned on create.
func (p IdentityPayload) NewUser() NewUser {
	return NewUser{
		ExternalID:  p.ID,
		Email:       p.PrimaryEmail(),
		DisplayName: p.DisplayName(),
	}
}

// Patch maps the payload to an update of every mutable identity field.
func (p IdentityPayload) Patch() UserPatch {
	return UserPatch{
		Email:       Some(p.PrimaryEmail()),
		DisplayName: Some(p.DisplayName()),
	}
}
