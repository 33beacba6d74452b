package auth

import (
	"github.com/google/uuid"
)

// Action is an operation a subject attempts on a patient-owned resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionMutate Action = "mutate"
)

// Relation is how a subject relates to the patient that owns a resource.
type Relation string

const (
	RelationAdmin          Relation = "admin"
	RelationOwner          Relation = "owner"
	RelationAssignedDoctor Relation = "assigned_doctor"
)

// Resource carries the attributes a policy decision depends on.
type Resource struct {
	OwnerID uuid.UUID
	// AssignedDoctorID is the owner's provider of record, if known.
	AssignedDoctorID *uuid.UUID
}

// Decision represents the result of a policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// ReadScope is the set of patients whose resources a subject may list.
type ReadScope int

const (
	ScopeSelf ReadScope = iota
	ScopeAssignedPatients
	ScopeAll
)

// AlertPolicy is the single place where patient-owned resource access is
// decided. Every alert operation asks it instead of checking roles inline.
type AlertPolicy struct {
	grants map[Action][]Relation
}

func NewAlertPolicy(grants map[Action][]Relation) *AlertPolicy {
	return &AlertPolicy{grants: grants}
}

// DefaultAlertPolicy: admins and owners read and mutate; assigned doctors only read.
func DefaultAlertPolicy() *AlertPolicy {
	return NewAlertPolicy(map[Action][]Relation{
		ActionRead:   {RelationAdmin, RelationOwner, RelationAssignedDoctor},
		ActionMutate: {RelationAdmin, RelationOwner},
	})
}

func (p *AlertPolicy) granted(action Action, rel Relation) bool {
	for _, r := range p.grants[action] {
		if r == rel {
			return true
		}
	}
	return false
}

// relations lists every relation sub holds towards res.
func relations(sub Identity, res Resource) []Relation {
	var rels []Relation
	if sub.Role == RoleAdmin {
		rels = append(rels, RelationAdmin)
	}
	if sub.UserID != uuid.Nil && sub.UserID == res.OwnerID {
		rels = append(rels, RelationOwner)
	}
	if sub.Role == RoleDoctor && res.AssignedDoctorID != nil && *res.AssignedDoctorID == sub.UserID {
		rels = append(rels, RelationAssignedDoctor)
	}
	return rels
}

// Evaluate decides whether sub may perform action on res.
func (p *AlertPolicy) Evaluate(sub Identity, action Action, res Resource) Decision {
	for _, rel := range relations(sub, res) {
		if p.granted(action, rel) {
			return Decision{Allowed: true, Reason: string(rel)}
		}
	}
	return Decision{Allowed: false, Reason: "not permitted to " + string(action) + " this resource"}
}

// ReadScope reports which patients' resources sub may list.
func (p *AlertPolicy) ReadScope(sub Identity) ReadScope {
	switch {
	case sub.Role == RoleAdmin && p.granted(ActionRead, RelationAdmin):
		return ScopeAll
	case sub.Role == RoleDoctor && p.granted(ActionRead, RelationAssignedDoctor):
		return ScopeAssignedPatients
	default:
		return ScopeSelf
	}
}
