package users

import (
	"encoding/json"
	"strings"

	"github.com/jrsteele09/go-github-auth/internal/utils"
)

// Profile is a denormalised snapshot of the authenticated GitHub user.
// It is cached alongside the access token and refreshed only on sign-in.
type Profile struct {
	ID          int64   `json:"id"`
	Login       string  `json:"login"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	AvatarURL   string  `json:"avatar_url"`
	Bio         *string `json:"bio"`
	Company     *string `json:"company"`
	Location    *string `json:"location"`
	Blog        *string `json:"blog"`
	PublicRepos int     `json:"public_repos"`
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
	HTMLURL     string  `json:"html_url"`
}

// Marshal serialises the profile for the token store.
func (p *Profile) Marshal() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseProfile decodes a cached profile. Absent, malformed or login-less JSON
// yields (nil, false) so callers treat it as "no cached profile".
func ParseProfile(raw string) (*Profile, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	if p.Login == "" {
		return nil, false
	}
	return &p, true
}

// DisplayName returns the user's name, falling back to the login handle.
func (p *Profile) DisplayName() string {
	if name := strings.TrimSpace(utils.Value(p.Name)); name != "" {
		return name
	}
	return p.Login
}

// Clone returns a deep copy so snapshots handed to observers cannot alias
// the controller's cached profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Name = utils.Clone(p.Name)
	c.Email = utils.Clone(p.Email)
	c.Bio = utils.Clone(p.Bio)
	c.Company = utils.Clone(p.Company)
	c.Location = utils.Clone(p.Location)
	c.Blog = utils.Clone(p.Blog)
	return &c
}
