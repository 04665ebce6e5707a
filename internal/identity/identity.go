// Package identity is the relay's view of the external identity service.
// The relay core treats the bearer credential as an opaque string; a
// Verifier, when configured, is consulted by the transport at upgrade
// time, before a connection reaches the core.
package identity

// Principal describes who a validated credential belongs to.
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// Verifier validates a bearer credential. Implementations are external
// collaborators; the relay never validates credentials itself.
type Verifier interface {
	Verify(token string) (Principal, error)
}

// AllowAll accepts every credential, including an absent one. Used when no
// identity service is configured.
type AllowAll struct{}

func (AllowAll) Verify(string) (Principal, error) {
	return Principal{}, nil
}
