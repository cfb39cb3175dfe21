// Package jwt issues and verifies the signed tokens of a token set: short-lived
// access tokens and OpenID identity tokens. Both share one claim shape and are
// told apart by the token_use claim, so an identity token can never be
// replayed as a bearer credential.
package jwt
