package models

// AdminFormMode is the state of the admin user form.
type AdminFormMode string

const (
	AdminIdle     AdminFormMode = "idle"
	AdminCreating AdminFormMode = "creating"
	AdminEditing  AdminFormMode = "editing"
)

// AdminFormState tracks the single open admin form. UserID is set only while editing.
type AdminFormState struct {
	Mode   AdminFormMode
	UserID int
}

// Editing reports whether the edit form for id is open.
func (s AdminFormState) Editing(id int) bool {
	return s.Mode == AdminEditing && s.UserID == id
}
