package redact

import (
	"regexp"
)

var (
	reDSNPass  = regexp.MustCompile(`(?i)(://)([^:/@\s]+):([^@\s]+)(@)`)
	rePassword = regexp.MustCompile(`(?i)(password=)([^\s;&]+)`)
	reKeyParam = regexp.MustCompile(`(?i)([?&]key=)([^\s&]+)`)
	reAPIKey   = regexp.MustCompile(`(?i)(api[_-]?key[=:]\s*)([^\s;&]+)`)
	reBearer   = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._-]+)`)
)

// Secrets masks credential material embedded in s: DSN userinfo,
// password= and api key fragments, key= query parameters, and bearer
// tokens. Everything else passes through unchanged.
func Secrets(s string) string {
	out := s
	out = reDSNPass.ReplaceAllString(out, "$1*:*$4")
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reKeyParam.ReplaceAllString(out, "$1***")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	out = reBearer.ReplaceAllString(out, "$1***")
	return out
}

// Error formats err through Secrets, returning an empty string for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}
