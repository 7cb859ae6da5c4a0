// Package auth renders the sign-in, sign-up and password reset screens.
package auth

import (
	"net/url"

	"github.com/a-h/templ"
	"github.com/loganlanou/authgate/views/components"
)

// Form carries submitted values back into a re-rendered screen. Passwords
// are never echoed.
type Form struct {
	Email            string
	ScreenName       string
	Errors           map[string]string
	RecaptchaSiteKey string
}

func (f Form) err(field string) string {
	if f.Errors == nil {
		return ""
	}
	return f.Errors[field]
}

func emailField(form Form) templ.Component {
	return components.Field{
		Name:         "email",
		Label:        "Email",
		Type:         "email",
		Value:        form.Email,
		Error:        form.err("email"),
		Autocomplete: "email",
	}.Component()
}

func screenNameField(form Form) templ.Component {
	return components.Field{
		Name:         "screenName",
		Label:        "Screen name",
		Type:         "text",
		Value:        form.ScreenName,
		Error:        form.err("screenName"),
		Autocomplete: "nickname",
	}.Component()
}

func passwordField(form Form, autocomplete string) templ.Component {
	return components.Field{
		Name:         "password",
		Label:        "Password",
		Type:         "password",
		Error:        form.err("password"),
		Autocomplete: autocomplete,
	}.Component()
}

func recaptchaSrc(siteKey string) string {
	return "https://www.google.com/recaptcha/api.js?render=" + url.QueryEscape(siteKey)
}
