package model

// Credentials is the token pair for an authenticated Streamlabs session.
// The zero value means unauthenticated.
type Credentials struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// Authenticated reports whether an access token is present.
func (c Credentials) Authenticated() bool {
	return c.AccessToken != ""
}
