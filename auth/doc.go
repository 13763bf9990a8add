// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth resolves the caller identity behind each request.

# Tokens

Callers send an HS256 JWT as a bearer token. The subject claim is the
username; the mod claim marks moderators:

	r := auth.NewResolver(cfg.JWTSecret, nil)
	id, err := r.Resolve(req)

Tokens must carry an expiry. A missing header returns ErrMissingToken; a bad
signature, expired token or empty subject returns ErrInvalidToken.

Issue signs tokens for the CLI and for tests:

	token, err := r.Issue(auth.Identity{Username: "alice"}, time.Hour)

# Shared Secrets

The internal sweep endpoint is called by an external cron with a shared
secret rather than a user token:

	err := auth.ValidateSecret(req.Header.Get("X-Sweep-Secret"), cfg.SweepSecret)

Comparison is constant time. An unconfigured secret rejects every caller.
*/
package auth
