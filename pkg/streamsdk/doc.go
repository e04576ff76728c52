/*
Package streamsdk is a client for the StreamIt chat API.

# Overview

The API authenticates with a short-lived bearer token and a long-lived
session cookie. The token is obtained by exchanging the authorization code
delivered to the login callback, and renewed by POSTing to /auth/refresh
with the cookie attached.

The client is deliberately thin: it knows the endpoints and their payloads
but nothing about keeping a session alive. Give it an *http.Client whose
transport is the session pipeline (see package session) and a cookie jar,
and every call is authorized and recovered transparently:

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	httpClient := &http.Client{Jar: jar, Transport: pipeline}
	api := streamsdk.NewClient("https://api.streamit.example", httpClient)

# Authentication

	// Send the user here to start the provider login
	loginURL := api.LoginURL()

	// The provider redirects back with ?code=...
	code, err := streamsdk.ParseAuthCallback(callbackURL)
	token, err := api.ExchangeToken(ctx, code)

	// Renew with the session cookie
	token, err = api.Refresh(ctx)

	// End the server-side session
	err = api.Logout(ctx)

# Resources

	channels, err := api.ListChannels(ctx)
	view, err := api.OpenChannel(ctx, channels[0].ID, streamsdk.Page{Limit: 30})
	invites, err := api.MyInvites(ctx, true)

# Errors

Non-2xx responses are returned as *APIError carrying the status code and
the server's message:

	var apiErr *streamsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		// not a member of the channel
	}
*/
package streamsdk
