package sponsor

import (
	"context"
	"net/http"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// DefaultGraphQLURL is the public GitHub GraphQL endpoint.
const DefaultGraphQLURL = "https://api.github.com/graphql"

// GitHubTiers reads sponsorship tiers from the GitHub GraphQL API. The
// sponsorship is resolved relative to the account owning the API secret.
type GitHubTiers struct {
	client *githubv4.Client
}

// NewGitHubTiers authenticates requests with a bearer secret. An empty url
// selects DefaultGraphQLURL.
func NewGitHubTiers(url, secret string) *GitHubTiers {
	if url == "" {
		url = DefaultGraphQLURL
	}
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: secret, TokenType: "bearer"},
	))
	return NewGitHubTiersWithClient(url, httpClient)
}

// NewGitHubTiersWithClient uses httpClient as is.
func NewGitHubTiersWithClient(url string, httpClient *http.Client) *GitHubTiers {
	return &GitHubTiers{client: githubv4.NewEnterpriseClient(url, httpClient)}
}

type sponsorshipQuery struct {
	User struct {
		SponsorshipForViewerAsSponsorable *struct {
			Tier *struct {
				Name                  string
				MonthlyPriceInDollars float64
			}
		} `graphql:"sponsorshipForViewerAsSponsorable(activeOnly: true)"`
	} `graphql:"user(login: $login)"`
}

// SponsorTier implements TierSource.
func (g *GitHubTiers) SponsorTier(ctx context.Context, username string) (*Tier, error) {
	var q sponsorshipQuery
	vars := map[string]interface{}{
		"login": githubv4.String(username),
	}
	if err := g.client.Query(ctx, &q, vars); err != nil {
		return nil, err
	}
	s := q.User.SponsorshipForViewerAsSponsorable
	if s == nil || s.Tier == nil {
		return nil, nil
	}
	return &Tier{Name: s.Tier.Name, MonthlyPriceInDollars: s.Tier.MonthlyPriceInDollars}, nil
}
