// Package common contains shared constants and sentinel errors used across
// autolot components.
package common

// AuthorizationHeaderName carries the admin capability token on requests
// to the /admin routes.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// AssetExtension is the extension of every normalized asset.
const AssetExtension = ".webp"

// AssetContentType is the media type of every normalized asset.
const AssetContentType = "image/webp"
