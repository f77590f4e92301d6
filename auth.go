package docsgate

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"github.com/eringen/docsgate/identity"
	"github.com/eringen/docsgate/sponsor"
)

// callbackOutcome enumerates every way an OAuth callback can end.
type callbackOutcome int

const (
	outcomeAccessDenied callbackOutcome = iota + 1
	outcomeStateMismatch
	outcomeProviderError
	outcomeUnknownUsername
	outcomeNotSponsor
	outcomeSponsor
)

func (o callbackOutcome) String() string {
	switch o {
	case outcomeAccessDenied:
		return "access_denied"
	case outcomeStateMismatch:
		return "state_mismatch"
	case outcomeProviderError:
		return "provider_error"
	case outcomeUnknownUsername:
		return "unknown_username"
	case outcomeNotSponsor:
		return "not_sponsor"
	case outcomeSponsor:
		return "sponsor"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// callbackResult carries what resolveCallback learned.
type callbackResult struct {
	outcome  callbackOutcome
	profile  identity.Profile
	decision sponsor.Decision
	err      error
}

// unknownIdentity names a session whose profile carried no usable identifier.
const unknownIdentity = "unknown"

func (a *App) handleAuthenticate(c echo.Context) error {
	flash := a.takeFlash(c)
	return Render(c, a.Views.Authenticate(flash, CsrfToken(c)))
}

func (a *App) handleAuthStart(c echo.Context) error {
	state := oauth2.GenerateVerifier()
	if err := saveOAuthState(c, state); err != nil {
		a.log.Error().Err(err).Msg("Github redirect request failed")
		a.setFlash(c, msgRedirectFailed)
		return c.Redirect(http.StatusFound, "/authenticate")
	}
	return c.Redirect(http.StatusFound, a.identity.AuthCodeURL(state))
}

// resolveCallback classifies a callback request. The stored state is
// consumed whatever the outcome.
func (a *App) resolveCallback(c echo.Context) callbackResult {
	stored, haveState := popOAuthState(c)
	providerErr := c.QueryParam("error")

	if providerErr == "access_denied" {
		return callbackResult{outcome: outcomeAccessDenied}
	}
	got := c.QueryParam("state")
	if !haveState || subtle.ConstantTimeCompare([]byte(stored), []byte(got)) != 1 {
		return callbackResult{outcome: outcomeStateMismatch}
	}
	if providerErr != "" {
		err := fmt.Errorf("github returned %s: %s", providerErr, c.QueryParam("error_description"))
		return callbackResult{outcome: outcomeProviderError, err: err}
	}
	code := c.QueryParam("code")
	if code == "" {
		return callbackResult{outcome: outcomeProviderError, err: errors.New("callback without code")}
	}

	ctx := c.Request().Context()
	token, err := a.identity.Exchange(ctx, code)
	if err != nil {
		return callbackResult{outcome: outcomeProviderError, err: err}
	}
	profile, err := a.identity.User(ctx, token)
	if err != nil {
		return callbackResult{outcome: outcomeProviderError, err: err}
	}
	if profile.Login == "" {
		return callbackResult{outcome: outcomeUnknownUsername, profile: profile}
	}

	decision := a.Oracle.Check(ctx, profile.Login)
	a.Metrics.SponsorChecks.WithLabelValues(string(decision.Reason), strconv.FormatBool(decision.Allowed)).Inc()
	if !decision.Allowed {
		return callbackResult{outcome: outcomeNotSponsor, profile: profile, decision: decision}
	}
	return callbackResult{outcome: outcomeSponsor, profile: profile, decision: decision}
}

func (a *App) handleAuthCallback(c echo.Context) error {
	res := a.resolveCallback(c)
	a.recordLogin(c, res)

	switch res.outcome {
	case outcomeAccessDenied:
		return a.onAccessDenied(c)
	case outcomeStateMismatch:
		return a.onStateMismatch(c)
	case outcomeProviderError:
		return a.onProviderError(c, res)
	case outcomeUnknownUsername:
		return a.onUnknownUsername(c, res)
	case outcomeNotSponsor:
		return a.onNotSponsor(c, res)
	case outcomeSponsor:
		return a.onSponsor(c, res)
	}
	return fmt.Errorf("unhandled callback outcome %s", res.outcome)
}

func (a *App) onAccessDenied(c echo.Context) error {
	a.log.Warn().Msg("Access denied in Github callback response")
	return a.flashRedirect(c, msgAccessDenied)
}

func (a *App) onStateMismatch(c echo.Context) error {
	a.log.Warn().Msg("State mismatch during Github redirect")
	return a.flashRedirect(c, msgStateMismatch)
}

func (a *App) onProviderError(c echo.Context, res callbackResult) error {
	a.log.Error().Err(res.err).Msg("Github authentication failed")
	return a.flashRedirect(c, msgProviderError)
}

// onUnknownUsername fails open and signs the visitor in under a fallback
// identity.
func (a *App) onUnknownUsername(c echo.Context, res callbackResult) error {
	a.log.Warn().
		Str("email", res.profile.Email).
		Int64("id", res.profile.ID).
		Msg("Unable to read Github username")
	return a.signIn(c, sessionIdentity(res.profile))
}

func (a *App) onNotSponsor(c echo.Context, res callbackResult) error {
	a.log.Info().
		Str("username", res.profile.Login).
		Str("reason", string(res.decision.Reason)).
		Msg("User is not a valid sponsor")
	return a.flashRedirect(c, msgNotSponsor)
}

func (a *App) onSponsor(c echo.Context, res callbackResult) error {
	a.log.Info().
		Str("username", res.profile.Login).
		Str("reason", string(res.decision.Reason)).
		Msg("Sponsor logged in")
	return a.signIn(c, res.profile.Login)
}

func (a *App) flashRedirect(c echo.Context, msg string) error {
	a.setFlash(c, msg)
	return c.Redirect(http.StatusFound, "/authenticate")
}

func (a *App) signIn(c echo.Context, username string) error {
	if err := setUserSession(c, username); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return c.Redirect(http.StatusFound, a.Config.LandingPath)
}

func sessionIdentity(p identity.Profile) string {
	if id := p.Identifier(); id != "" {
		return id
	}
	return unknownIdentity
}

func (a *App) recordLogin(c echo.Context, res callbackResult) {
	a.Metrics.LoginOutcomes.WithLabelValues(res.outcome.String()).Inc()
	who := res.profile.Login
	if res.outcome == outcomeUnknownUsername {
		who = sessionIdentity(res.profile)
	}
	err := a.Store.RecordLogin(LoginRecord{
		Identity: who,
		Outcome:  res.outcome.String(),
		ClientIP: c.RealIP(),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("Unable to record login")
	}
}

// rateLimit rejects clients that exceed the login attempt budget.
func (a *App) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.limiter.Allow(c.RealIP()) {
			a.log.Warn().Str("ip", c.RealIP()).Str("path", c.Path()).Msg("Login attempts rate limited")
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Please wait a minute.")
		}
		return next(c)
	}
}
