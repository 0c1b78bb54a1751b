// Package common contains constants, sentinel errors and small helpers
// shared by the QuickChat client and server.
package common

// AccessTokenHeaderName is the gRPC metadata key and HTTP header that carry
// the access token.
const AccessTokenHeaderName = "access_token"

// SessionStorageKey is the local key/value key holding the persisted
// credential.
const SessionStorageKey = "@quickchat_session"

// OTPLength is the number of digits in a one-time login code.
const OTPLength = 4
