package domain

import "time"

// MaxRockNameLength bounds Rock.Name.
const MaxRockNameLength = 155

// Type is a rock category such as "Igneous". Rocks reference exactly one Type.
type Type struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Rock is a specimen in a user's collection.
//
// TypeID and UserID are always set on a persisted rock. Type and Owner are
// the resolved relations; stores fill them in on every read.
type Rock struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	TypeID    int64     `json:"type_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Type  *Type `json:"type,omitempty"`
	Owner *User `json:"owner,omitempty"`
}

// IsOwnedBy reports whether userID owns the rock.
func (r *Rock) IsOwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// OwnerFilterCurrent is the only owner query value that narrows a listing.
const OwnerFilterCurrent = "current"

// RockFilter narrows a rock listing. The zero value matches every rock.
type RockFilter struct {
	OwnerID string
}

// NewRockFilter builds the filter for an owner query value. Only "current"
// restricts the listing, to rocks owned by userID. Any other value,
// including the empty string, lists all rocks.
func NewRockFilter(owner, userID string) RockFilter {
	if owner == OwnerFilterCurrent {
		return RockFilter{OwnerID: userID}
	}
	return RockFilter{}
}

// Matches reports whether the rock passes the filter.
func (f RockFilter) Matches(r *Rock) bool {
	return f.OwnerID == "" || r.UserID == f.OwnerID
}
