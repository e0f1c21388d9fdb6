package models

// Session is the authenticated state of the console. An empty Token means no
// session, and CurrentUser is then always nil.
type Session struct {
	Token       string
	CurrentUser *User
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// IsAdmin reports whether the current user holds the admin role.
func (s Session) IsAdmin() bool {
	return s.Authenticated() && s.CurrentUser.IsAdmin()
}

// Visibility is what the renderer may show for a session.
type Visibility struct {
	Authenticated bool
	AdminTab      bool
	User          *User
}

// Visibility derives the protected-view switches from the session.
func (s Session) Visibility() Visibility {
	if !s.Authenticated() {
		return Visibility{}
	}
	v := Visibility{Authenticated: true, AdminTab: s.IsAdmin()}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		v.User = &u
	}
	return v
}
