// Package account renders the protected profile page and the neutral
// page shown while the session is still being restored.
package account

import (
	"github.com/a-h/templ"
	"github.com/loganlanou/authgate/storage/db"
	"github.com/loganlanou/authgate/views/layout"
)

// UserData is everything the profile page shows. Profile is nil when no
// record exists for the principal; LookupError is set when the internal id
// could not be resolved.
type UserData struct {
	Profile     *db.Profile
	InternalID  string
	LookupError string
}

// Loading is shown while the visitor's session is undecided. It reloads
// itself and navigates nowhere.
func Loading(page layout.Page) templ.Component {
	page.Meta.RefreshSeconds = 1
	return loading(page)
}
