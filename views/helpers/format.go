package helpers

import "time"

// FormatDate formats a time.Time as "Jan 2, 2006"
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// Fallback returns s, or defaultVal when s is empty
func Fallback(s, defaultVal string) string {
	if s == "" {
		return defaultVal
	}
	return s
}
