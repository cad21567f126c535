// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the bench control protocol: CBOR
// request-response over a unix socket.
//
// Each connection carries exactly one request-response cycle: the
// client writes a CBOR map with an "action" field, the server invokes
// the matching agent operation and writes back a Response, then the
// connection closes. CBOR is self-delimiting, so no framing protocol
// is needed.
//
// Agent operations never fail at the protocol level: lease denials
// and missing drivers travel inside the response data as the agent's
// sentinel values. A Response with ok=false means the request itself
// was malformed or named an unknown action.
package control
