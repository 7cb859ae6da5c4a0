package session

// Data is what the cookie carries between requests. The ID token is never
// stored; the refresh token is enough to restore the provider session.
type Data struct {
	VisitorKey   string
	RefreshToken string
	New          bool
}

type FlashKind string

const (
	FlashError   FlashKind = "_flash_error"
	FlashSuccess FlashKind = "_flash_success"
)

// Flash is a one-shot notice shown at the top of the next page.
type Flash struct {
	Kind    FlashKind
	Message string
}

func (f Flash) IsError() bool { return f.Kind == FlashError }
