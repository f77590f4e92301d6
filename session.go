package docsgate

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/hkdf"
)

const (
	// sessionName is the encrypted cookie carrying the signed-in username.
	sessionName   = "oauth_token"
	sessionMaxAge = 7 * 24 * 60 * 60

	// stateSessionName holds the OAuth state between redirect and callback.
	stateSessionName = "gh_oauth_state"
	stateTTL         = 10 * time.Minute
)

// deriveSessionKeys expands APP_KEY into an HMAC key and an AES-256 key.
func deriveSessionKeys(appKey string) (hashKey, blockKey []byte, err error) {
	r := hkdf.New(sha256.New, []byte(appKey), nil, []byte("docsgate session cookies"))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive hash key: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive block key: %w", err)
	}
	return hashKey, blockKey, nil
}

func (a *App) newSessionStore() (*sessions.CookieStore, error) {
	hashKey, blockKey, err := deriveSessionKeys(a.Config.AppKey)
	if err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	// MaxAge also bounds the timestamp accepted by the cookie codecs.
	store.MaxAge(sessionMaxAge)
	return store, nil
}

// CurrentUser returns the username of a signed-in visitor.
func CurrentUser(c echo.Context) (string, bool) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return "", false
	}
	user, ok := sess.Values["username"].(string)
	return user, ok && user != ""
}

func setUserSession(c echo.Context, username string) error {
	sess, err := session.Get(sessionName, c)
	if sess == nil {
		return err
	}
	sess.Values["username"] = username
	sess.Values["signed_in_at"] = time.Now().Unix()
	return sess.Save(c.Request(), c.Response())
}

func saveOAuthState(c echo.Context, state string) error {
	sess, err := session.Get(stateSessionName, c)
	if sess == nil {
		return err
	}
	sess.Options = &sessions.Options{
		Path:     "/authenticate",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sess.Options.Secure,
		MaxAge:   int(stateTTL.Seconds()),
	}
	sess.Values["state"] = state
	sess.Values["issued_at"] = time.Now().Unix()
	return sess.Save(c.Request(), c.Response())
}

// popOAuthState returns the stored state and deletes the cookie. Expired
// or undecodable state reads as missing.
func popOAuthState(c echo.Context) (string, bool) {
	sess, err := session.Get(stateSessionName, c)
	if sess == nil {
		return "", false
	}
	state, _ := sess.Values["state"].(string)
	issued, _ := sess.Values["issued_at"].(int64)

	sess.Values = map[interface{}]interface{}{}
	sess.Options.Path = "/authenticate"
	sess.Options.MaxAge = -1
	_ = sess.Save(c.Request(), c.Response())

	if err != nil || state == "" || time.Since(time.Unix(issued, 0)) > stateTTL {
		return "", false
	}
	return state, true
}
