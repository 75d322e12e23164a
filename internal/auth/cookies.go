package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// Cookies builds the HttpOnly token cookies set on login and refresh and the
// expired variants written on logout.
type Cookies struct {
	config     CookieConfig
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookies(config CookieConfig, tokens TokenConfig) *Cookies {
	tokens = tokens.withDefaults()
	return &Cookies{
		config:     config,
		sameSite:   ParseSameSite(config.SameSite),
		accessTTL:  tokens.AccessTTL,
		refreshTTL: tokens.RefreshTTL,
	}
}

func (c *Cookies) Issue(pair TokenPair) []*http.Cookie {
	return []*http.Cookie{
		c.build(AccessCookieName, pair.AccessToken, int(c.accessTTL.Seconds())),
		c.build(RefreshCookieName, pair.RefreshToken, int(c.refreshTTL.Seconds())),
	}
}

func (c *Cookies) Clear() []*http.Cookie {
	return []*http.Cookie{
		c.build(AccessCookieName, "", -1),
		c.build(RefreshCookieName, "", -1),
	}
}

func (c *Cookies) build(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   maxAge,
		Secure:   c.config.Secure,
		HttpOnly: true,
		SameSite: c.sameSite,
	}
}

func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
