// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"io"
	"net/url"

	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFormPost reads a form_post response page (an auto submitting HTML
// form) and returns the form's action and its input values.
func ParseFormPost(r io.Reader) (action string, values url.Values, e error) {
	const op = "ParseFormPost"
	root, err := html.Parse(r)
	if err != nil {
		return "", nil, fmt.Errorf("%s: unable to parse html: %w: %w", op, ErrMalformedResponse, err)
	}
	form, ok := scrape.Find(root, scrape.ByTag(atom.Form))
	if !ok {
		return "", nil, fmt.Errorf("%s: no form: %w", op, ErrMalformedResponse)
	}
	values = url.Values{}
	for _, in := range scrape.FindAll(form, scrape.ByTag(atom.Input)) {
		name := scrape.Attr(in, "name")
		if name == "" {
			continue
		}
		values.Add(name, scrape.Attr(in, "value"))
	}
	return scrape.Attr(form, "action"), values, nil
}
