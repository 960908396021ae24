package browser

import "fmt"

// Role is the kind of control a Locator is expected to resolve to. It only
// drives logging and diagnostics; resolution is always by XPath.
type Role string

const (
	RoleButton    Role = "button"
	RoleLink      Role = "link"
	RoleInput     Role = "input"
	RoleCheckbox  Role = "checkbox"
	RoleSelect    Role = "select"
	RoleOption    Role = "option"
	RoleContainer Role = "container"
	RoleHeading   Role = "heading"
)

// Locator is a logical description of a UI element. It is re-resolved on every
// lookup because the portal re-renders freely.
type Locator struct {
	// Name identifies the locator in logs and diagnostic dump file names.
	Name  string
	Role  Role
	XPath string
}

// NewLocator builds a Locator.
func NewLocator(name string, role Role, xpath string) Locator {
	return Locator{Name: name, Role: role, XPath: xpath}
}

func (l Locator) String() string {
	return fmt.Sprintf("%s %q", l.Role, l.Name)
}

// Rect is an element's bounding box in CSS pixels, relative to the viewport.
type Rect struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ElementState is a point-in-time snapshot of a resolved element.
type ElementState struct {
	Found   bool   `json:"found"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Checked bool   `json:"checked"`
	TagName string `json:"tagName"`
	Value   string `json:"value"`
	Box     Rect   `json:"box"`
}

// Actionable mirrors "clickable": present, rendered and not disabled.
func (s ElementState) Actionable() bool {
	return s.Found && s.Visible && s.Enabled
}
