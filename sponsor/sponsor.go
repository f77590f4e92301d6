// Package sponsor decides whether a GitHub user may read the documentation.
//
// A user is allowed when they are on the static allow-list or when they
// sponsor the viewer account with a monthly tier at or above the configured
// minimum. Lookup failures fail open: a broken sponsorship API grants access
// rather than locking out paying sponsors. Anyone able to make the API fail
// therefore gains access; this is an accepted availability tradeoff.
package sponsor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMinimumMonthlyDollars is the smallest tier that unlocks the docs.
const DefaultMinimumMonthlyDollars = 19

// DefaultAllowList holds accounts that read the docs without sponsoring.
var DefaultAllowList = []string{
	"thetutlage",
	"julien-r44",
	"mcsneaky",
	"targos",
	"romainlanz",
	"roonie007",
	"baekilda",
	"armgitaar",
	"ashokgelal",
	"anishghimire862",
	"janl",
	"a21y",
	"adamcikado",
	"zlpkhr",
	"eidellev",
	"joshmanders",
	"pieterletsdial",
	"cloleb",     // via "AlekStudioIntellisoft"
	"shiny",      // via "KeqinHQ"
	"JASON-SHQ",  // via "KeqinHQ"
	"redeyesovo", // via "KeqinHQ"
	"tpoisseau",  // via "Zakodium"
}

// Tier is an active sponsorship tier of a user towards the viewer account.
type Tier struct {
	Name                  string
	MonthlyPriceInDollars float64
}

// TierSource looks up the sponsorship tier a user holds. It returns a nil
// tier and no error when the user has no active sponsorship or no tier.
type TierSource interface {
	SponsorTier(ctx context.Context, username string) (*Tier, error)
}

// Reason explains a Decision.
type Reason string

const (
	ReasonAllowList     Reason = "allow_list"
	ReasonTier          Reason = "tier"
	ReasonBelowTier     Reason = "below_tier"
	ReasonNoSponsorship Reason = "no_sponsorship"
	ReasonLookupFailed  Reason = "lookup_failed"
)

// Decision is computed once per login attempt and never cached.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Oracle answers sponsorship questions. It is immutable after New.
type Oracle struct {
	allowed map[string]struct{}
	minimum float64
	source  TierSource
	log     zerolog.Logger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithAllowList adds usernames to the allow-list.
func WithAllowList(usernames ...string) Option {
	return func(o *Oracle) {
		for _, u := range usernames {
			if u = normalize(u); u != "" {
				o.allowed[u] = struct{}{}
			}
		}
	}
}

// WithMinimumMonthlyDollars overrides DefaultMinimumMonthlyDollars.
func WithMinimumMonthlyDollars(v float64) Option {
	return func(o *Oracle) {
		if v > 0 {
			o.minimum = v
		}
	}
}

// WithLogger sets the logger used for lookup details and failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Oracle) {
		o.log = l
	}
}

// New creates an Oracle backed by source, seeded with DefaultAllowList.
func New(source TierSource, opts ...Option) *Oracle {
	o := &Oracle{
		allowed: make(map[string]struct{}, len(DefaultAllowList)),
		minimum: DefaultMinimumMonthlyDollars,
		source:  source,
		log:     zerolog.Nop(),
	}
	WithAllowList(DefaultAllowList...)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsSponsoring reports whether username may read the documentation.
func (o *Oracle) IsSponsoring(ctx context.Context, username string) bool {
	return o.Check(ctx, username).Allowed
}

// Check is IsSponsoring with the reason attached.
func (o *Oracle) Check(ctx context.Context, username string) Decision {
	if o.Allowed(username) {
		return Decision{Allowed: true, Reason: ReasonAllowList}
	}

	tier, err := o.source.SponsorTier(ctx, username)
	if err != nil {
		o.log.Error().Err(err).Str("username", username).Msg("Github graphQL request failed")
		return Decision{Allowed: true, Reason: ReasonLookupFailed}
	}

	ev := o.log.Info().Str("username", username)
	if tier != nil {
		ev = ev.Str("tier", tier.Name).Float64("monthly_price_in_dollars", tier.MonthlyPriceInDollars)
	}
	ev.Msg("Sponsorship details")

	switch {
	case tier == nil:
		return Decision{Allowed: false, Reason: ReasonNoSponsorship}
	case tier.MonthlyPriceInDollars >= o.minimum:
		return Decision{Allowed: true, Reason: ReasonTier}
	default:
		return Decision{Allowed: false, Reason: ReasonBelowTier}
	}
}

// Allowed reports allow-list membership, ignoring case.
func (o *Oracle) Allowed(username string) bool {
	_, ok := o.allowed[normalize(username)]
	return ok
}

func normalize(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
