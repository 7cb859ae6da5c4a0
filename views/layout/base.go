package layout

import (
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/session"
)

// Page is what every full page needs besides its body.
type Page struct {
	Meta      PageMeta
	Principal *identity.Principal
	CSRF      string
	Flashes   []session.Flash
}
