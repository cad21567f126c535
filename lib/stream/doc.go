// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream turns pull-style decompressors (io.Reader wrappers)
// into the push-style, time-boxed decoders the image-write pipeline
// needs.
//
// Clients deliver a compressed image in arbitrarily sized chunks, one
// chunk per call, and the agent must write the decoded bytes to the
// storage media incrementally while staying responsive to other
// requests. A Decoder owns a goroutine running the decompressor; Write
// feeds one chunk and drains decoded blocks to a sink until the
// decompressor asks for more input or the caller's deadline fires.
// When the deadline fires mid-drain, the decoder simply stays where it
// is — buffered compressed data, partially decoded state, and any
// unfed input survive until the next Write call resumes it.
//
// A decompressor that finishes one compressed stream with input left
// over is reopened over the remaining bytes, so concatenated
// multi-stream payloads decode as one continuous sequence with no
// caller-visible seam.
package stream
