package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner       = "owner"
	RoleAdmin       = "admin"
	RoleBilling     = "billing"
	RoleSuperAdmin  = "super_admin"
	RoleProvisioner = "provisioner" // hidden role for PBX provisioning automation
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleProvisioner }
