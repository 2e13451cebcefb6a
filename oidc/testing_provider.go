// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"encoding/pem"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/stretchr/testify/require"
)

// Test provider paths.
const (
	TestAuthorizePath   = "/authorize"
	TestTokenPath       = "/token"
	TestUserInfoPath    = "/userinfo"
	TestJWKSPath        = "/jwks"
	TestEndSessionPath  = "/endsession"
	TestValidationPath  = "/" + identityTokenValidationPath
	testDiscoveryPath   = "/.well-known/openid-configuration"
	testKeyID           = "test-key"
	testDefaultExpires  = 3600
	testDefaultClientID = "test-client-id"
)

var formPostTmpl = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html><head><title>Submit</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range $k, $v := .Values}}<input type="hidden" name="{{$k}}" value="{{index $v 0}}"/>
{{end}}</form>
</body></html>`))

// testAuthRequest is an authorization request waiting for its code to be
// redeemed.
type testAuthRequest struct {
	redirectURI string
	nonce       string
	challenge   string
}

// TestProvider is a local OIDC provider that supports the relying party
// capabilities of this package: discovery, authorize (every flow and response
// mode), token, identity token validation, user info, JWKS and end session.
// Faults can be injected to exercise the client's failure paths.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	key        *ecdsa.PrivateKey
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	replySubject        string
	replyUserinfo       map[string]interface{}
	customClaims        map[string]interface{}
	customAudience      string
	customNonce         string
	expectedAuthCode    string
	expiresIn           int64
	badCodeHash         bool
	badAccessTokenHash  bool
	omitIdToken         bool
	tokenError          string
	tokenStatus         int
	validationFailure   bool
	disableUserInfo     bool
	loginRequired       bool
	authError           string

	pending           map[string]testAuthRequest
	accessTokens      map[string]bool
	tokenRequests     int
	validations       int
	endSessions       int
	lastIdTokenHint   string
	lastAuthorizeForm url.Values
}

// StartTestProvider creates and starts a disposable TestProvider.  It's
// stopped when the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		clientID:            testDefaultClientID,
		allowedRedirectURIs: []string{"https://example.com/callback"},
		replySubject:        "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"name":  "Alice",
			"email": "alice@example.com",
			"color": "red",
		},
		expiresIn:    testDefaultExpires,
		pending:      map[string]testAuthRequest{},
		accessTokens: map[string]bool{},
	}
	p.key = TestGenerateKey(t)
	p.jwks = TestJWKS(p.key, testKeyID)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's base URL, which is also its issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the provider's HTTPS
// server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client which trusts the provider's certificate.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SigningKey returns the key used to sign id_tokens.
func (p *TestProvider) SigningKey() *ecdsa.PrivateKey { return p.key }

// Endpoints returns the provider's endpoints, as Discover would.
func (p *TestProvider) Endpoints() *Endpoints {
	return &Endpoints{
		Issuer:                     p.Addr(),
		AuthorizeUrl:               p.Addr() + TestAuthorizePath,
		TokenUrl:                   p.Addr() + TestTokenPath,
		EndSessionUrl:              p.Addr() + TestEndSessionPath,
		UserInfoUrl:                p.Addr() + TestUserInfoPath,
		IdentityTokenValidationUrl: p.Addr() + TestValidationPath,
		JWKSUrl:                    p.Addr() + TestJWKSPath,
	}
}

// SetClientCreds configures the client id and secret.  An empty secret
// allows public clients.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetAllowedRedirectURIs configures the allowed redirect URIs.  Default:
// https://example.com/callback
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetExpectedAuthCode configures the code returned from the authorize
// endpoint.  By default every authorization gets a random code.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetCustomClaims configures additional id_token claims.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetUserInfoClaims configures the claims returned by the user info
// endpoint, in addition to sub.
func (p *TestProvider) SetUserInfoClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// SetCustomAudience configures the aud claim of issued id_tokens.
func (p *TestProvider) SetCustomAudience(aud string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = aud
}

// SetCustomNonce configures the nonce claim of issued id_tokens, instead of
// the requested one.
func (p *TestProvider) SetCustomNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customNonce = nonce
}

// SetExpiresIn configures the access token lifetime in seconds.
func (p *TestProvider) SetExpiresIn(seconds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// SetBadCodeHash makes issued id_tokens carry a c_hash which doesn't match
// the code.
func (p *TestProvider) SetBadCodeHash(bad bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badCodeHash = bad
}

// SetBadAccessTokenHash makes issued id_tokens carry an at_hash which
// doesn't match the access token.
func (p *TestProvider) SetBadAccessTokenHash(bad bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badAccessTokenHash = bad
}

// OmitIdTokens forces an error state where the token endpoint doesn't
// return an id_token.
func (p *TestProvider) OmitIdTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIdToken = true
}

// SetTokenError makes the token endpoint return the oauth error code.
func (p *TestProvider) SetTokenError(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenError = code
}

// SetTokenStatus makes the token endpoint fail with the HTTP status and no
// oauth error body.
func (p *TestProvider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

// SetValidationFailure makes the identity token validation endpoint reject
// every token.
func (p *TestProvider) SetValidationFailure(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validationFailure = fail
}

// DisableUserInfo makes the user info endpoint return 404.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// SetLoginRequired makes authorization requests with prompt=none fail with
// login_required.
func (p *TestProvider) SetLoginRequired(required bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginRequired = required
}

// SetAuthError makes the authorize endpoint return the oauth error code.
func (p *TestProvider) SetAuthError(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = code
}

// TokenRequests returns the number of token endpoint requests.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// ValidationRequests returns the number of identity token validation
// requests.
func (p *TestProvider) ValidationRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validations
}

// EndSessionRequests returns the number of end session requests and the
// last id_token_hint.
func (p *TestProvider) EndSessionRequests() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endSessions, p.lastIdTokenHint
}

// LastAuthorizeRequest returns the query of the last authorize request.
func (p *TestProvider) LastAuthorizeRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthorizeForm
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case testDiscoveryPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer             string `json:"issuer"`
			AuthEndpoint       string `json:"authorization_endpoint"`
			TokenEndpoint      string `json:"token_endpoint"`
			EndSessionEndpoint string `json:"end_session_endpoint"`
			UserinfoEndpoint   string `json:"userinfo_endpoint,omitempty"`
			JWKSURI            string `json:"jwks_uri"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + TestAuthorizePath,
			TokenEndpoint:      p.Addr() + TestTokenPath,
			EndSessionEndpoint: p.Addr() + TestEndSessionPath,
			UserinfoEndpoint:   p.Addr() + TestUserInfoPath,
			JWKSURI:            p.Addr() + TestJWKSPath,
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case TestAuthorizePath:
		p.authorize(w, req)

	case TestTokenPath:
		p.token(w, req)

	case TestValidationPath:
		p.validate(w, req)

	case TestUserInfoPath:
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !p.accessTokens[strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{"sub": p.replySubject}
		for k, v := range p.replyUserinfo {
			reply[k] = v
		}
		_ = p.writeJSON(w, reply)

	case TestJWKSPath:
		_ = p.writeJSON(w, p.jwks)

	case TestEndSessionPath:
		p.endSessions++
		p.lastIdTokenHint = req.URL.Query().Get("id_token_hint")
		if u := req.URL.Query().Get("post_logout_redirect_uri"); u != "" {
			http.Redirect(w, req, u, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>signed out</body></html>"))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) authorize(w http.ResponseWriter, req *http.Request) {
	qv := req.URL.Query()
	p.lastAuthorizeForm = qv

	redirectURI := qv.Get("redirect_uri")
	if !strutil.StrListContains(p.allowedRedirectURIs, redirectURI) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	mode := ResponseMode(qv.Get("response_mode"))
	if mode == "" {
		mode = QueryResponseMode
	}
	reply := url.Values{"state": {qv.Get("state")}}
	fail := func(code string) {
		reply.Set("error", code)
		p.writeAuthResponse(w, req, redirectURI, mode, reply)
	}

	switch {
	case p.authError != "":
		fail(p.authError)
		return
	case qv.Get("client_id") != p.clientID:
		fail("unauthorized_client")
		return
	case qv.Get("nonce") == "":
		fail("invalid_request")
		return
	case qv.Get("prompt") == "none" && p.loginRequired:
		fail("login_required")
		return
	}
	responseType := Flow(qv.Get("response_type"))
	if !responseType.valid() {
		fail("unsupported_response_type")
		return
	}

	nonce := qv.Get("nonce")
	if responseType.usesCode() {
		code := p.expectedAuthCode
		if code == "" {
			var err error
			if code, err = NewID("code"); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		p.pending[code] = testAuthRequest{
			redirectURI: redirectURI,
			nonce:       nonce,
			challenge:   qv.Get("code_challenge"),
		}
		reply.Set("code", code)
	}
	var accessToken string
	if responseType == ImplicitFlow {
		var err error
		if accessToken, err = p.issueAccessToken(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		reply.Set("access_token", accessToken)
		reply.Set("token_type", "Bearer")
		reply.Set("expires_in", strconv.FormatInt(p.expiresIn, 10))
	}
	if responseType.callbackIdToken() {
		idt, err := p.issueIdToken(nonce, reply.Get("code"), accessToken)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		reply.Set("id_token", idt)
	}
	p.writeAuthResponse(w, req, redirectURI, mode, reply)
}

func (p *TestProvider) writeAuthResponse(w http.ResponseWriter, req *http.Request, redirectURI string, mode ResponseMode, reply url.Values) {
	switch mode {
	case FormPostResponseMode:
		w.Header().Set("Content-Type", "text/html")
		_ = formPostTmpl.Execute(w, struct {
			Action string
			Values url.Values
		}{redirectURI, reply})
	case FragmentResponseMode:
		http.Redirect(w, req, redirectURI+"#"+reply.Encode(), http.StatusFound)
	default:
		http.Redirect(w, req, redirectURI+"?"+reply.Encode(), http.StatusFound)
	}
}

func (p *TestProvider) token(w http.ResponseWriter, req *http.Request) {
	p.tokenRequests++
	w.Header().Set("Content-Type", "application/json")
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if p.tokenStatus != 0 {
		w.WriteHeader(p.tokenStatus)
		return
	}
	if p.tokenError != "" {
		p.writeTokenError(w, http.StatusBadRequest, p.tokenError, "")
		return
	}

	clientID, secret, ok := req.BasicAuth()
	if !ok {
		clientID = req.FormValue("client_id")
		secret = req.FormValue("client_secret")
	}
	code := req.FormValue("code")
	pending, found := p.pending[code]
	switch {
	case req.FormValue("grant_type") != "authorization_code":
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	case clientID != p.clientID:
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unexpected client id")
		return
	case p.clientSecret != "" && secret != p.clientSecret && req.FormValue("client_assertion") == "":
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "unexpected client secret")
		return
	case !found:
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	case req.FormValue("redirect_uri") != pending.redirectURI:
		p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if pending.challenge != "" {
		v := &S256Verifier{verifier: req.FormValue("code_verifier")}
		challenge, _ := CreateCodeChallenge(S256, v)
		if challenge != pending.challenge {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "code_verifier mismatch")
			return
		}
	}
	delete(p.pending, code)

	accessToken, err := p.issueAccessToken()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	reply := struct {
		AccessToken  string `json:"access_token"`
		IdToken      string `json:"id_token,omitempty"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}{
		AccessToken:  accessToken,
		RefreshToken: "refresh_" + accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    p.expiresIn,
	}
	if !p.omitIdToken {
		if reply.IdToken, err = p.issueIdToken(pending.nonce, "", accessToken); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	_ = p.writeJSON(w, &reply)
}

func (p *TestProvider) validate(w http.ResponseWriter, req *http.Request) {
	p.validations++
	w.Header().Set("Content-Type", "application/json")
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if p.validationFailure || req.FormValue("client_id") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	tok, err := jwt.ParseSigned(req.FormValue("token"), []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var claims map[string]interface{}
	if err := tok.Claims(p.key.Public(), &claims); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_ = p.writeJSON(w, claims)
}

// issueIdToken signs an id_token.  The c_hash and at_hash claims are only
// added when a code or access token is issued with it.
func (p *TestProvider) issueIdToken(nonce, code, accessToken string) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		ClaimIssuer:             p.Addr(),
		"sub":                   p.replySubject,
		ClaimAudience:           p.clientID,
		ClaimNonce:              nonce,
		ClaimIssuedAt:           now.Unix(),
		ClaimNotBefore:          now.Add(-5 * time.Second).Unix(),
		ClaimExpiration:         now.Add(5 * time.Minute).Unix(),
		ClaimAuthenticationTime: now.Unix(),
	}
	if p.customAudience != "" {
		claims[ClaimAudience] = p.customAudience
	}
	if p.customNonce != "" {
		claims[ClaimNonce] = p.customNonce
	}
	if code != "" {
		claims[ClaimAuthorizationCodeHash] = LeftHash(code)
		if p.badCodeHash {
			claims[ClaimAuthorizationCodeHash] = LeftHash(code + "x")
		}
	}
	if accessToken != "" {
		claims[ClaimAccessTokenHash] = LeftHash(accessToken)
		if p.badAccessTokenHash {
			claims[ClaimAccessTokenHash] = LeftHash(accessToken + "x")
		}
	}
	for k, v := range p.customClaims {
		claims[k] = v
	}
	sig, err := testSigner(p.key, testKeyID)
	if err != nil {
		return "", err
	}
	return jwt.Signed(sig).Claims(claims).Serialize()
}

func (p *TestProvider) issueAccessToken() (string, error) {
	t, err := NewID("at")
	if err != nil {
		return "", err
	}
	p.accessTokens[t] = true
	return t, nil
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}
