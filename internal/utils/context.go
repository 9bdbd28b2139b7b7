// Package utils provides shared constants for the HTTP layer
package utils

// ContextKeySession is the key used to store the open session in the echo context
const ContextKeySession = "session"

// CookieName is the name of the session cookie
const CookieName = "IronStudio"

// OperatorCookieName is the name of the cookie set after the admin token
// was presented
const OperatorCookieName = "IronStudioOperator"
