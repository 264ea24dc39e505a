package models

// AuthChangeEvent names the reason of a state-change notification.
type AuthChangeEvent string

const (
	EventSignedIn       AuthChangeEvent = "SIGNED_IN"
	EventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
)
