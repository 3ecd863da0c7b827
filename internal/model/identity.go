package model

// Role is the organisational role of a caller.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleBranchAdmin     Role = "branch_admin"
	RoleDepartmentAdmin Role = "department_admin"
	RoleUser            Role = "user"
)

// Identity is the trusted, already verified caller of an operation.
type Identity struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	BranchID     string `json:"branch_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Targets lists every grant target that applies to the caller.
func (i Identity) Targets() []GrantTarget {
	targets := []GrantTarget{{Type: TargetUser, ID: i.UserID}}
	if i.BranchID != "" {
		targets = append(targets, GrantTarget{Type: TargetBranch, ID: i.BranchID})
	}
	if i.DepartmentID != "" {
		targets = append(targets, GrantTarget{Type: TargetDepartment, ID: i.DepartmentID})
	}
	return targets
}
