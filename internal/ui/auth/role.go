package auth

import "github.com/Its-donkey/storefront/internal/ui/model"

// DefaultRole is assigned to profiles that name no usable role.
const DefaultRole = model.RoleConsumer

// DeriveRole picks the authoritative role for a profile record.
//
// A known, authenticated primary role wins. Otherwise the most privileged entry in the
// roles list is used, and DefaultRole when neither yields anything.
func DeriveRole(profile model.Profile) model.Role {
	if role, ok := model.ParseRole(string(profile.PrimaryRole)); ok && role.Authenticated() {
		return role
	}
	best := model.Role("")
	for _, raw := range profile.Roles {
		role, ok := model.ParseRole(string(raw))
		if !ok || !role.Authenticated() {
			continue
		}
		if role.Privilege() > best.Privilege() {
			best = role
		}
	}
	if best != "" {
		return best
	}
	return DefaultRole
}
