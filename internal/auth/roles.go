package auth

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(value), true
	}
	return "", false
}

type Capability string

const (
	CapClassCreate    Capability = "class.create"
	CapClassRead      Capability = "class.read"
	CapClassManage    Capability = "class.manage"
	CapClassJoin      Capability = "class.join"
	CapExerciseAuthor Capability = "exercise.author"
	CapExerciseSubmit Capability = "exercise.submit"
	CapOverrideOwner  Capability = "owner.override"
)

var capabilities = map[Role]map[Capability]bool{
	RoleStudent: {
		CapClassRead:      true,
		CapClassJoin:      true,
		CapExerciseSubmit: true,
	},
	RoleTeacher: {
		CapClassCreate:    true,
		CapClassRead:      true,
		CapClassManage:    true,
		CapExerciseAuthor: true,
	},
	RoleAdmin: {
		CapClassCreate:    true,
		CapClassRead:      true,
		CapClassManage:    true,
		CapExerciseAuthor: true,
		CapOverrideOwner:  true,
	},
}

func Allowed(role Role, capability Capability) bool {
	return capabilities[role][capability]
}

// Actor is the authenticated caller of a workflow operation. ProfileID is
// empty until the caller has created a profile.
type Actor struct {
	IdentityID string
	ProfileID  string
	Role       Role
	Email      string
}

func (a Actor) Can(capability Capability) bool {
	return Allowed(a.Role, capability)
}

// Owns reports whether the actor may act as the owner of a resource held by
// ownerProfileID. Admins own everything.
func (a Actor) Owns(ownerProfileID string) bool {
	if a.Can(CapOverrideOwner) {
		return true
	}
	return a.ProfileID != "" && a.ProfileID == ownerProfileID
}
