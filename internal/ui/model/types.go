package model

import (
	"strings"
	"time"
)

// Role identifies which view set and permissions apply to the current visitor.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleConsumer Role = "consumer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// Roles lists every known role from least to most privileged.
var Roles = []Role{RoleGuest, RoleConsumer, RoleMerchant, RoleAdmin}

// ParseRole normalises a raw role string and reports whether it is known.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleConsumer, RoleMerchant, RoleAdmin:
		return true
	default:
		return false
	}
}

// Authenticated reports whether r can only be held by a signed-in identity.
func (r Role) Authenticated() bool {
	return r.Valid() && r != RoleGuest
}

// Privilege ranks roles for precedence decisions; unknown roles rank below guest.
func (r Role) Privilege() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleMerchant:
		return 2
	case RoleConsumer:
		return 1
	case RoleGuest:
		return 0
	default:
		return -1
	}
}

func (r Role) String() string { return string(r) }

// ViewID names a screen within a role.
type ViewID string

// ViewDescriptor is the static configuration for a single (role, view) pair.
type ViewDescriptor struct {
	Role           Role   `json:"role" yaml:"-"`
	View           ViewID `json:"view" yaml:"-"`
	ContainerID    string `json:"container" yaml:"container"`
	ContentPath    string `json:"content,omitempty" yaml:"content,omitempty"`
	StylePath      string `json:"style,omitempty" yaml:"style,omitempty"`
	Module         string `json:"module,omitempty" yaml:"module,omitempty"`
	IsMainTab      bool   `json:"mainTab,omitempty" yaml:"mainTab,omitempty"`
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	EmbedFooter    bool   `json:"footer,omitempty" yaml:"footer,omitempty"`
	EmbedFilterBar bool   `json:"filterBar,omitempty" yaml:"filterBar,omitempty"`
}

// Key returns the descriptor id used by the loaded-views set.
func (d ViewDescriptor) Key() string {
	return string(d.Role) + "/" + string(d.View)
}

// RouteState describes the view currently rendered.
type RouteState struct {
	Role   Role              `json:"role"`
	View   ViewID            `json:"view"`
	Params map[string]string `json:"params,omitempty"`
	Config ViewDescriptor    `json:"config"`
}

// Zero reports whether no route has been committed yet.
func (s RouteState) Zero() bool {
	return s.Role == "" && s.View == ""
}

// HistoryState is the object stored alongside each history entry.
type HistoryState struct {
	Role   string `json:"role"`
	ViewID string `json:"viewId"`
}

// SessionState is the persisted session owned by the engine.
//
// An empty Role means no role is stored; UserID is set iff Role is authenticated.
type SessionState struct {
	Role           Role   `json:"role,omitempty"`
	UserID         string `json:"userId,omitempty"`
	LastActiveRole Role   `json:"lastActiveRole,omitempty"`
	LastActiveView ViewID `json:"lastActiveView,omitempty"`
}

// Consistent reports whether the role/userId pairing holds.
func (s SessionState) Consistent() bool {
	if s.Role.Authenticated() {
		return s.UserID != ""
	}
	return s.UserID == ""
}

// Identity is the signed-in principal reported by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Profile is the user profile record linked to an identity.
type Profile struct {
	ID          string    `json:"id" bson:"_id"`
	UID         string    `json:"uid" bson:"uid"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty" bson:"display_name,omitempty"`
	PrimaryRole Role      `json:"primaryRole,omitempty" bson:"primary_role,omitempty"`
	Roles       []Role    `json:"roles,omitempty" bson:"roles,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// Account is the companion account record written after a profile.
type Account struct {
	ID        string    `json:"id" bson:"_id"`
	ProfileID string    `json:"profileId" bson:"profile_id"`
	UID       string    `json:"uid" bson:"uid"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// AuditEntry records an identity lifecycle event.
type AuditEntry struct {
	ID        string            `json:"id" bson:"_id"`
	ProfileID string            `json:"profileId" bson:"profile_id"`
	UID       string            `json:"uid" bson:"uid"`
	Action    string            `json:"action" bson:"action"`
	Details   map[string]string `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt" bson:"created_at"`
}

// Audit actions written by the profile creation flow.
const (
	AuditSignup   = "signup"
	AuditSelfHeal = "self_heal"
)
