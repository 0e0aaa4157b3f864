package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// ExternalIdentity - профиль пользователя, полученный от OAuth-провайдера.
type ExternalIdentity struct {
	Email          string
	Name           string
	GithubUsername string
}

type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	// Identity обменивает code на токен и загружает профиль.
	Identity(ctx context.Context, code string) (*ExternalIdentity, error)
}

type oauthProvider struct {
	name    string
	config  *oauth2.Config
	profile func(ctx context.Context, client *http.Client) (*ExternalIdentity, error)
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) IdentityProvider {
	return &oauthProvider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		profile: googleProfile,
	}
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string) IdentityProvider {
	return &oauthProvider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		profile: githubProfile,
	}
}

func (p *oauthProvider) Name() string { return p.name }

func (p *oauthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oauthProvider) Identity(ctx context.Context, code string) (*ExternalIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s code exchange failed: %w", p.name, err)
	}
	return p.profile(ctx, p.config.Client(ctx, token))
}

func googleProfile(ctx context.Context, client *http.Client) (*ExternalIdentity, error) {
	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://openidconnect.googleapis.com/v1/userinfo", &info); err != nil {
		return nil, err
	}
	if !info.EmailVerified {
		return nil, fmt.Errorf("google email %s is not verified", info.Email)
	}
	return &ExternalIdentity{Email: info.Email, Name: info.Name}, nil
}

func githubProfile(ctx context.Context, client *http.Client) (*ExternalIdentity, error) {
	var user struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &user); err != nil {
		return nil, err
	}

	identity := &ExternalIdentity{Email: user.Email, Name: user.Name, GithubUsername: user.Login}
	if identity.Name == "" {
		identity.Name = user.Login
	}
	if identity.Email != "" {
		return identity, nil
	}

	// Публичный email скрыт: берём основной подтверждённый.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			identity.Email = e.Email
			break
		}
	}
	return identity, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", url, err)
	}
	return nil
}
