package core

// Principal is the authenticated identity issued by the identity provider.
// It is passed explicitly to every operation acting on behalf of a user.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	AvatarURL string
}

func (p Principal) IsZero() bool { return p.UserID == "" }
