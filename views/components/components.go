// Package components holds the small building blocks shared by pages.
package components

import (
	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

const (
	buttonBase   = "inline-flex items-center justify-center rounded-md px-4 py-2 text-sm font-medium"
	buttonFilled = "bg-indigo-600 text-white hover:bg-indigo-500"
	buttonLink   = "bg-transparent px-0 py-0 text-indigo-600 hover:underline"
	inputBase    = "block w-full rounded-md border border-gray-300 px-3 py-2 text-sm"
	inputInvalid = "border-red-500"
	noticeBase   = "rounded-md px-4 py-3 text-sm"
)

// Class merges Tailwind classes so later ones win over conflicting earlier
// ones.
func Class(classes ...string) string {
	return twmerge.Merge(classes...)
}

func buttonClass(link bool, extra ...string) string {
	variant := buttonFilled
	if link {
		variant = buttonLink
	}
	return Class(append([]string{buttonBase, variant}, extra...)...)
}

func noticeClass(isError bool) string {
	if isError {
		return Class(noticeBase, "bg-red-50 text-red-800")
	}
	return Class(noticeBase, "bg-green-50 text-green-800")
}

// Field is a labelled input with an optional validation message.
type Field struct {
	Name         string
	Label        string
	Type         string
	Value        string
	Error        string
	Autocomplete string
}

func (f Field) Component() templ.Component {
	return field(f)
}

func (f Field) inputClass() string {
	if f.Error != "" {
		return Class(inputBase, inputInvalid)
	}
	return inputBase
}

// attrs are the optional input attributes. Passwords are never echoed.
func (f Field) attrs() templ.Attributes {
	attrs := templ.Attributes{}
	if f.Type != "password" {
		attrs["value"] = f.Value
	}
	if f.Autocomplete != "" {
		attrs["autocomplete"] = f.Autocomplete
	}
	return attrs
}
