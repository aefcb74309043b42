package access

import "github.com/trezcool/darasa/core/user"

type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
}

var (
	adminNav = []NavItem{
		{Label: "Dashboard", Path: AdminHomePath, Icon: "dashboard"},
		{Label: "Courses", Path: AdminHomePath + "/courses", Icon: "book"},
		{Label: "Exams", Path: AdminHomePath + "/exams", Icon: "clipboard"},
		{Label: "Grading", Path: AdminHomePath + "/grading", Icon: "check"},
		{Label: "Students", Path: AdminHomePath + "/students", Icon: "users"},
		{Label: "Batches", Path: AdminHomePath + "/batches", Icon: "calendar"},
		{Label: "Activity", Path: AdminHomePath + "/activity", Icon: "activity"},
	}
	studentNav = []NavItem{
		{Label: "Dashboard", Path: StudentHomePath, Icon: "dashboard"},
		{Label: "My Courses", Path: StudentHomePath + "/courses", Icon: "book"},
		{Label: "Exams", Path: StudentHomePath + "/exams", Icon: "clipboard"},
		{Label: "Batches", Path: StudentHomePath + "/batches", Icon: "calendar"},
		{Label: "Profile", Path: StudentHomePath + "/profile", Icon: "user"},
	}
)

// Navigation returns the sidebar items of a portal.
func Navigation(p user.Portal) []NavItem {
	var items []NavItem
	switch p {
	case user.PortalAdmin:
		items = adminNav
	case user.PortalStudent:
		items = studentNav
	default:
		items = studentNav
	}
	return append([]NavItem(nil), items...)
}
