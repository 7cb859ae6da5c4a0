package home

import "github.com/loganlanou/authgate/views/layout"

func greeting(page layout.Page) string {
	p := page.Principal
	if p == nil {
		return "Welcome. Sign in or create an account to see your profile."
	}
	name := p.DisplayName
	if name == "" {
		name = p.Email
	}
	return "Welcome back, " + name + "."
}
