package lifecycle

// Grant is the input of Issue: either ExternalGrant or InternalGrant.
type Grant interface {
	owner() string
	isGrant()
}

// ExternalGrant carries tokens issued by an upstream provider. They are adopted
// verbatim; ExpiresAtSeconds is the provider's epoch-seconds expiry applied to
// both tokens.
type ExternalGrant struct {
	OwnerID          string
	AccessToken      string
	RefreshToken     string
	ExpiresAtSeconds int64
}

func (g ExternalGrant) owner() string { return g.OwnerID }
func (ExternalGrant) isGrant()        {}

// InternalGrant asks the manager to get or create both credentials.
type InternalGrant struct {
	OwnerID string
}

func (g InternalGrant) owner() string { return g.OwnerID }
func (InternalGrant) isGrant()        {}
