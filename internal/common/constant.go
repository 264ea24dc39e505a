// Package common contains constants and small helpers shared by the client
// packages of GophAuth.
package common

// Header names understood by the hosted backend.
const (
	APIKeyHeaderName        = "apikey"
	AuthorizationHeaderName = "Authorization"
	ClientInfoHeaderName    = "X-Client-Info"
	PreferHeaderName        = "Prefer"
)

// ClientInfo is sent with every backend request.
const ClientInfo = "gophauth-go/1.0"

// StorageKeyPrefix prefixes every key the client library writes to the
// persisted session store.
const StorageKeyPrefix = "sb-"
