package model

import (
	"fmt"
	"time"
)

// AccessLevel is the effective permission a caller holds on a folder.
// Higher levels include every capability of the lower ones.
type AccessLevel int

const (
	AccessNone   AccessLevel = -1
	AccessView   AccessLevel = 0
	AccessEdit   AccessLevel = 1
	AccessManage AccessLevel = 2
)

func (l AccessLevel) String() string {
	switch l {
	case AccessView:
		return "view"
	case AccessEdit:
		return "edit"
	case AccessManage:
		return "manage"
	default:
		return "none"
	}
}

// Allows reports whether l satisfies the required level.
func (l AccessLevel) Allows(required AccessLevel) bool { return l >= required }

// ParseAccessLevel parses a grantable level. "none" is not grantable.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case "view":
		return AccessView, nil
	case "edit":
		return AccessEdit, nil
	case "manage":
		return AccessManage, nil
	}
	return AccessNone, fmt.Errorf("unknown access level %q", s)
}

// MaxAccess returns the highest of the given levels, AccessNone for none.
func MaxAccess(levels ...AccessLevel) AccessLevel {
	best := AccessNone
	for _, l := range levels {
		if l > best {
			best = l
		}
	}
	return best
}

func (l AccessLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *AccessLevel) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*l = AccessNone
		return nil
	}
	v, err := ParseAccessLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// TargetType identifies who a grant applies to.
type TargetType string

const (
	TargetUser       TargetType = "user"
	TargetBranch     TargetType = "branch"
	TargetDepartment TargetType = "department"
)

// Valid reports whether t is a known grant target type.
func (t TargetType) Valid() bool {
	return t == TargetUser || t == TargetBranch || t == TargetDepartment
}

// GrantTarget is one principal a grant may be addressed to.
type GrantTarget struct {
	Type TargetType
	ID   string
}

// Permission is a grant of an access level on a folder.
// (FolderID, TargetType, TargetID) is unique.
type Permission struct {
	ID         string      `json:"id"`
	FolderID   string      `json:"folder_id"`
	TargetType TargetType  `json:"target_type"`
	TargetID   string      `json:"target_id"`
	Level      AccessLevel `json:"level"`
	GrantedBy  string      `json:"granted_by"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
