package wall

import (
	"crypto/subtle"
	"net/http"
	"time"

	"memorywall/internal/common"
)

// AdminAuth checks the single admin credential from configuration and
// issues admin tokens.
type AdminAuth struct {
	username     string
	passwordHash string
	issuer       *common.TokenIssuer
	cookieSecure bool
}

func NewAdminAuth(username, passwordHash string, issuer *common.TokenIssuer, cookieSecure bool) *AdminAuth {
	return &AdminAuth{
		username:     username,
		passwordHash: passwordHash,
		issuer:       issuer,
		cookieSecure: cookieSecure,
	}
}

func (a *AdminAuth) Login(username, password string) (string, time.Time, error) {
	if a.passwordHash == "" {
		return "", time.Time{}, &Error{Kind: KindUnauthorized, Op: "admin login", Err: ErrInvalidCredentials}
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := common.CheckPassword(password, a.passwordHash) == nil
	if !userOK || !passOK {
		return "", time.Time{}, &Error{Kind: KindUnauthorized, Op: "admin login", Err: ErrInvalidCredentials}
	}
	return a.issuer.AdminToken(username)
}

func (a *AdminAuth) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AdminCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AdminAuth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
