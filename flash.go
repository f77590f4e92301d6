package docsgate

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const flashCookie = "flash_messages"

// Flash texts shown on the login page.
const (
	msgAccessDenied   = "Access denied. You have cancelled the login process"
	msgStateMismatch  = "We are unable to verify the request. Please refresh this page and try login again"
	msgProviderError  = "Github authentication failed. Please try again"
	msgNotSponsor     = "Not authorized. The documentation is available for sponsors only"
	msgRedirectFailed = "Unable to redirect to Github"
)

type flashMessages struct {
	Error string `json:"error"`
}

// setFlash stores msg for the next page view. The cookie value is the JSON
// object {"error": msg}, base64url-encoded without padding so it stays a
// valid cookie octet string. A later call in the same response replaces
// the earlier one.
func (a *App) setFlash(c echo.Context, msg string) {
	raw, err := json.Marshal(flashMessages{Error: msg})
	if err != nil {
		return
	}
	dropSetCookie(c.Response().Header(), flashCookie)
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	})
}

// takeFlash reads and clears the flash cookie. Malformed values read as empty.
func (a *App) takeFlash(c echo.Context) string {
	ck, err := c.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	dropSetCookie(c.Response().Header(), flashCookie)
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	})

	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return ""
	}
	var msgs flashMessages
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return ""
	}
	return msgs.Error
}

func dropSetCookie(h http.Header, name string) {
	prefix := name + "="
	var kept []string
	for _, v := range h.Values(echo.HeaderSetCookie) {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del(echo.HeaderSetCookie)
	for _, v := range kept {
		h.Add(echo.HeaderSetCookie, v)
	}
}
