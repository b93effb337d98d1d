package rbac

import "strings"

type Role string
type Action string

const (
	RoleViewer   Role = "viewer"
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionComment Action = "comment"
	ActionSubmit  Action = "submit"
	ActionReview  Action = "review"
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

var grants = map[Role]map[Action]bool{
	RoleViewer: {ActionRead: true},
	RoleAuthor: {
		ActionRead: true, ActionWrite: true, ActionComment: true, ActionSubmit: true,
	},
	RoleReviewer: {
		ActionRead: true, ActionWrite: true, ActionComment: true, ActionSubmit: true,
		ActionReview: true, ActionPublish: true,
	},
}

// Can reports whether role may perform action. Admins may do everything.
func Can(role Role, action Action) bool {
	if role == RoleAdmin {
		return true
	}
	return grants[role][action]
}

func Normalize(role string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(role))); r {
	case RoleViewer, RoleAuthor, RoleReviewer, RoleAdmin:
		return r
	default:
		return RoleViewer
	}
}
