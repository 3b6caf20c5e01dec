// Package twitchapi contains minimal helpers for the Twitch Helix and OAuth
// APIs: an app access token source, the user-token refresh grant, and the
// stream/user lookups the chat commands need.
package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// NewAppTokenSource returns a caching token source for the client-credentials
// grant. The app token works for Helix reads but NOT for IRC chat; chat needs
// a user token with chat:read/chat:edit scopes.
func NewAppTokenSource(ctx context.Context, clientID, clientSecret string, hc *http.Client) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return cfg.TokenSource(ctx)
}
