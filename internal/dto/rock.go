// Package dto maps domain values to the shapes the API and SSE events send.
//
// Mapping is explicit: every response field is set here, so a domain field
// never leaks to clients by accident.
package dto

import "github.com/clairecatohanson/rock-of-ages-api/internal/domain"

// RockType is the nested type of a serialized rock.
type RockType struct {
	Label string `json:"label" doc:"Type label"`
}

// RockOwner is the nested owner of a serialized rock.
type RockOwner struct {
	FirstName string `json:"first_name" doc:"Owner first name"`
	LastName  string `json:"last_name" doc:"Owner last name"`
}

// Rock is the client-facing representation of a rock.
type Rock struct {
	ID     int64     `json:"id" doc:"Rock ID"`
	Name   string    `json:"name" doc:"Rock name"`
	Weight float64   `json:"weight" doc:"Weight in kilograms"`
	Type   RockType  `json:"type" doc:"Rock type"`
	User   RockOwner `json:"user" doc:"Owning user"`
}

// NewRock serializes a rock with resolved Type and Owner. Missing relations
// serialize as empty objects rather than null.
func NewRock(r *domain.Rock) Rock {
	out := Rock{
		ID:     r.ID,
		Name:   r.Name,
		Weight: r.Weight,
	}
	if r.Type != nil {
		out.Type.Label = r.Type.Label
	}
	if r.Owner != nil {
		out.User.FirstName = r.Owner.FirstName
		out.User.LastName = r.Owner.LastName
	}
	return out
}

// NewRocks serializes a list. The result is never nil.
func NewRocks(rocks []*domain.Rock) []Rock {
	out := make([]Rock, 0, len(rocks))
	for _, r := range rocks {
		out = append(out, NewRock(r))
	}
	return out
}

// Type is the client-facing representation of a rock type.
type Type struct {
	ID    int64  `json:"id" doc:"Type ID"`
	Label string `json:"label" doc:"Type label"`
}

// NewType serializes a rock type.
func NewType(t *domain.Type) Type {
	return Type{ID: t.ID, Label: t.Label}
}

// NewTypes serializes a list. The result is never nil.
func NewTypes(types []*domain.Type) []Type {
	out := make([]Type, 0, len(types))
	for _, t := range types {
		out = append(out, NewType(t))
	}
	return out
}
