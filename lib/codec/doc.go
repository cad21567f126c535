// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides CBOR encoding and decoding for the bench
// control protocol. All wire traffic between benchd and its clients
// goes through this package so that encoder configuration lives in
// exactly one place.
package codec
