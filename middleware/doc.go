// Package middleware holds the HTTP adapters used in front of the goGuard
// service.
//
//   - [RequireOperator] checks an operator bearer token and its scope, then
//     stores the claims in the request context.
//   - [RequestMetadata] attaches the client IP and request id that tracker
//     audit events carry.
//
// Token verification itself lives in package jwt; this package only
// translates HTTP headers and status codes.
package middleware
