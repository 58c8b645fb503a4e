// Package auth obtains and maintains the bearer token used by the remote
// meeting service.
//
// Login runs the OAuth 2.0 authorization code flow with PKCE: the server's
// metadata document is discovered, a public client is registered on demand
// (RFC 7591) and cached together with its redirect URI, and a loopback
// listener receives the authorization code. Manager refreshes the access
// token shortly before it expires and persists rotated refresh tokens before
// handing out the new access token, since the service may issue single-use
// refresh tokens.
package auth
