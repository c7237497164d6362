package session

// Identity is the signed-in user carried by a session.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// Record is the session state persisted inside the signed container. Expiries
// are absolute epoch milliseconds.
type Record struct {
	OwnerID             string    `json:"ownerId,omitempty"`
	AccessToken         string    `json:"accessToken,omitempty"`
	RefreshToken        string    `json:"refreshToken,omitempty"`
	AccessTokenExpires  int64     `json:"accessTokenExpires,omitempty"`
	RefreshTokenExpires int64     `json:"refreshTokenExpires,omitempty"`
	User                *Identity `json:"user,omitempty"`
	Error               string    `json:"error,omitempty"`

	// CSRF is the token unsafe browser requests must echo back. It is bound
	// to the record so a refresh keeps it.
	CSRF string `json:"csrf,omitempty"`
}

// owner returns the id the record's credentials are bound to.
func (r *Record) owner() string {
	if r.OwnerID != "" {
		return r.OwnerID
	}
	if r.User != nil {
		return r.User.ID
	}
	return ""
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.User != nil {
		u := *r.User
		out.User = &u
	}
	return &out
}

// View is what callers outside the auth layer get to see.
type View struct {
	User        *Identity `json:"user"`
	AccessToken string    `json:"accessToken,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Project returns the caller-facing view of r. ok is false for a nil record.
func Project(r *Record) (View, bool) {
	if r == nil {
		return View{}, false
	}
	v := View{AccessToken: r.AccessToken, Error: r.Error}
	if r.User != nil {
		u := *r.User
		v.User = &u
	}
	return v, true
}
