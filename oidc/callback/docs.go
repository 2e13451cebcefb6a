// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides a one-time use callback (in the form of
an http.HandlerFunc) which captures the provider's authorization response
and publishes it on a channel.  It's intended for a loopback listener in the
same process that started the authentication attempt (see the browser
package).

All three response modes are captured:

  - query: the full callback URL of the GET request
  - form_post: the form encoded body of the POST request
  - fragment: the fragment is never sent to the server, so a GET without a
    query is answered with a small page which posts the fragment back to
    the callback as a form encoded body

The captured payload is meant for oidc.ParseAuthorizationResponse; the
callback doesn't validate it.
*/
package callback
