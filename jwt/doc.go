// Package jwt issues and verifies the operator bearer tokens that protect the
// goGuard admin endpoints. Tokens are HS256 or Ed25519 JWTs carrying the
// operator as subject and a list of scopes.
package jwt
