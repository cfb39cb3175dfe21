package session

// Grant is the server-side half of a refresh token. The refresh secret itself
// is never stored; RefreshHash is its SHA-256.
type Grant struct {
	GrantID string

	Subject       string
	Name          string
	Scopes        []string
	SecurityStamp string

	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
