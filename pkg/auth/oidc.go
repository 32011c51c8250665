package auth

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OIDCConfig holds the oauth2 client used for researcher sign-in on the
// privacy service. Token exchange happens upstream; this service only
// builds the authorization redirect.
type OIDCConfig struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCConfig(issuer, clientID, clientSecret, redirectURL string) (*OIDCConfig, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCConfig{config: config, issuer: issuer}, nil
}

func (c *OIDCConfig) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// LoginHandler starts the researcher sign-in flow: it issues a state nonce,
// stores it in a short-lived cookie for the callback to compare against, and
// redirects to the provider's authorization endpoint.
func (c *OIDCConfig) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     "oidc_state",
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, c.AuthCodeURL(state), http.StatusFound)
	}
}

func (c *OIDCConfig) Issuer() string {
	return c.issuer
}
