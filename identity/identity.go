// Package identity wraps the GitHub OAuth2 login handshake.
package identity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Profile is the authenticated GitHub account. Login may be empty when
// GitHub does not return it.
type Profile struct {
	Login string
	Email string
	ID    int64
}

// Identifier returns a stable identity for the profile, preferring the login.
func (p Profile) Identifier() string {
	switch {
	case p.Login != "":
		return p.Login
	case p.ID != 0:
		return "id:" + strconv.FormatInt(p.ID, 10)
	default:
		return p.Email
	}
}

// Provider is an OAuth2 identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	User(ctx context.Context, token *oauth2.Token) (Profile, error)
}

// Config holds the GitHub OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	GraphQLURL   string // defaults to the public GitHub endpoint
}

// GitHub implements Provider against github.com.
type GitHub struct {
	oauth      *oauth2.Config
	graphQLURL string
}

var _ Provider = (*GitHub)(nil)

// NewGitHub requests the read:user scope.
func NewGitHub(cfg Config) *GitHub {
	url := cfg.GraphQLURL
	if url == "" {
		url = "https://api.github.com/graphql"
	}
	return &GitHub{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user"},
		},
		graphQLURL: url,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (g *GitHub) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (g *GitHub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// User reads the viewer profile with the user's own token.
func (g *GitHub) User(ctx context.Context, token *oauth2.Token) (Profile, error) {
	client := githubv4.NewEnterpriseClient(g.graphQLURL, g.oauth.Client(ctx, token))
	var q struct {
		Viewer struct {
			Login      string
			Email      string
			DatabaseID int64 `graphql:"databaseId"`
		}
	}
	if err := client.Query(ctx, &q, nil); err != nil {
		return Profile{}, fmt.Errorf("query viewer: %w", err)
	}
	return Profile{Login: q.Viewer.Login, Email: q.Viewer.Email, ID: q.Viewer.DatabaseID}, nil
}
