// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// AuthenticationType is the authentication type of every principal this
// package assembles.
const AuthenticationType = "OIDC"

// Claim is a single (type, value) pair.  A principal may carry several
// claims of the same type.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Principal is the assembled identity of the authenticated user.  A
// Principal is never modified in place once it's part of a LoginResult;
// Filter and Merge return new principals.
type Principal struct {
	AuthenticationType string  `json:"authenticationType"`
	Claims             []Claim `json:"claims"`
}

// NewPrincipal creates an OIDC principal from the claims.
func NewPrincipal(claims ...Claim) *Principal {
	return &Principal{
		AuthenticationType: AuthenticationType,
		Claims:             append([]Claim(nil), claims...),
	}
}

// AnonymousPrincipal is the empty, unauthenticated principal.
func AnonymousPrincipal() *Principal {
	return &Principal{}
}

// IsAuthenticated reports whether the principal came from a login.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.AuthenticationType != ""
}

// FindFirst returns the value of the first claim of type t, or "" if none.
func (p *Principal) FindFirst(t string) string {
	if p == nil {
		return ""
	}
	for _, c := range p.Claims {
		if c.Type == t {
			return c.Value
		}
	}
	return ""
}

// FindAll returns the values of every claim of type t.
func (p *Principal) FindAll(t string) []string {
	if p == nil {
		return nil
	}
	var values []string
	for _, c := range p.Claims {
		if c.Type == t {
			values = append(values, c.Value)
		}
	}
	return values
}

// HasType reports whether the principal carries a claim of type t.
func (p *Principal) HasType(t string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Claims {
		if c.Type == t {
			return true
		}
	}
	return false
}

// Filter returns a copy without any claim whose type is in claimTypes.
// Filtering a principal which has none of those types returns an equal
// principal.
func (p *Principal) Filter(claimTypes []string) *Principal {
	if p == nil {
		return nil
	}
	out := &Principal{AuthenticationType: p.AuthenticationType}
	for _, c := range p.Claims {
		if strutil.StrListContains(claimTypes, c.Type) {
			continue
		}
		out.Claims = append(out.Claims, c)
	}
	return out
}

// Merge returns a copy with the other claims appended, skipping any claim
// whose type p already carries.  The principal's own claims always win.
func (p *Principal) Merge(other []Claim) *Principal {
	if p == nil {
		return nil
	}
	out := &Principal{
		AuthenticationType: p.AuthenticationType,
		Claims:             append([]Claim(nil), p.Claims...),
	}
	for _, c := range other {
		if p.HasType(c.Type) {
			continue
		}
		out.Claims = append(out.Claims, c)
	}
	return out
}

// ClaimsFromMap flattens a JSON claim set into claims.  Arrays expand to
// one claim per element, strings are used verbatim and other values are
// rendered as their JSON text.  Keys are sorted so the result is stable.
func ClaimsFromMap(m map[string]interface{}) ([]Claim, error) {
	const op = "ClaimsFromMap"
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var claims []Claim
	for _, k := range keys {
		switch v := m[k].(type) {
		case []interface{}:
			for _, e := range v {
				s, err := claimValue(e)
				if err != nil {
					return nil, fmt.Errorf("%s: claim %q: %w", op, k, err)
				}
				claims = append(claims, Claim{Type: k, Value: s})
			}
		default:
			s, err := claimValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: claim %q: %w", op, k, err)
			}
			claims = append(claims, Claim{Type: k, Value: s})
		}
	}
	return claims, nil
}

func claimValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
