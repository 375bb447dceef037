package enums

import "fmt"

// UserRole maps to the role column on utilisateurs. The wire values are kept
// from the original French client contract.
type UserRole string

const (
	UserRolePassenger       UserRole = "passager"
	UserRoleDriver          UserRole = "chauffeur"
	UserRolePassengerDriver UserRole = "passager_chauffeur"
	UserRoleEmployee        UserRole = "employe"
	UserRoleAdmin           UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRolePassenger,
	UserRoleDriver,
	UserRolePassengerDriver,
	UserRoleEmployee,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanDrive reports whether the role is allowed to publish rides and vehicles.
func (r UserRole) CanDrive() bool {
	return r == UserRoleDriver || r == UserRolePassengerDriver
}

// CanRide reports whether the role is allowed to join rides as a passenger.
func (r UserRole) CanRide() bool {
	return r == UserRolePassenger || r == UserRolePassengerDriver
}

// IsStaff reports whether the role belongs to platform staff.
func (r UserRole) IsStaff() bool {
	return r == UserRoleEmployee || r == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
