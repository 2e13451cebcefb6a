// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"html/template"
	"net/http"
)

// SuccessResponseFunc is used by Capture to create a http response when a
// callback without an error response was captured.  The function should use
// the http.ResponseWriter to send back whatever content (headers, html,
// JSON, etc) it wishes to the browser.
type SuccessResponseFunc func(w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Capture to create a http response when the
// provider returned an error response, or the callback failed.  Exactly one
// of respErr and e is set.
type ErrorResponseFunc func(respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	Uri         string
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head>
<body><p>{{.Message}}</p><p>You may close this window.</p></body></html>
`))

// DefaultSuccessResponse writes a page telling the user the sign in
// completed.
func DefaultSuccessResponse(w http.ResponseWriter, _ *http.Request) {
	writeResultPage(w, http.StatusOK, "Signed in", "Authentication completed.")
}

// DefaultErrorResponse writes a page with the provider's error code, or the
// callback error.
func DefaultErrorResponse(respErr *AuthenErrorResponse, e error, w http.ResponseWriter, _ *http.Request) {
	switch {
	case respErr != nil:
		msg := "Authentication failed: " + respErr.Error
		if respErr.Description != "" {
			msg += ": " + respErr.Description
		}
		writeResultPage(w, http.StatusUnauthorized, "Sign in failed", msg)
	case e != nil:
		writeResultPage(w, http.StatusBadRequest, "Sign in failed", e.Error())
	default:
		writeResultPage(w, http.StatusInternalServerError, "Sign in failed", "Unknown error.")
	}
}

func writeResultPage(w http.ResponseWriter, status int, title, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = resultPage.Execute(w, struct{ Title, Message string }{title, msg})
}

// setSecurityHeaders keeps callback pages out of caches, frames and
// referrers.  csp is the Content-Security-Policy.
func setSecurityHeaders(w http.ResponseWriter, csp string) {
	h := w.Header()
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Content-Security-Policy", csp)
}
