package tenant

import "github.com/ayubfarah/dealer-ops-core/internal/domain"

// RoleAdmits reports whether actor may perform an action gated at
// required. super_admin always admits, regardless of rank, because it
// sits outside every dealership's own hierarchy.
func RoleAdmits(actor, required domain.Role) bool {
	if actor == domain.RoleSuperAdmin {
		return true
	}
	return actor.Rank() >= required.Rank()
}

// CapabilityAdmits reports whether granted is a superset of required —
// the gate used for ExternalApiToken-authenticated requests.
func CapabilityAdmits(granted []domain.Capability, required ...domain.Capability) bool {
	have := make(map[domain.Capability]bool, len(granted))
	for _, c := range granted {
		have[c] = true
	}
	for _, c := range required {
		if !have[c] {
			return false
		}
	}
	return true
}
