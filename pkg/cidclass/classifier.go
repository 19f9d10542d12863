// SPDX-License-Identifier: Apache-2.0

// Package cidclass decides, for a textual CID, whether it denotes a v0
// dag-pb object, a v1 dag-pb object, or a v1 raw leaf. Decode failures are
// reported as "unknown" (every predicate false), never as a Go error —
// callers downstream treat unknown the same as any other unrecognized
// object kind.
package cidclass

import (
	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"

	logpkg "github.com/containerd/log"
)

// codec tags from the multicodec table; dag-pb and raw are the only two
// this filesystem ever needs to distinguish.
const (
	codecDagPB = 0x70
	codecRaw   = 0x55
)

// IsV0Object reports whether s is a v0 CID (legacy base58btc, starts with
// 'Q'). v0 CIDs only ever identify dag-pb objects.
func IsV0Object(s string) bool {
	return len(s) > 0 && s[0] == 'Q'
}

// IsV1DagPB reports whether s decodes to a v1 CID whose codec is dag-pb.
func IsV1DagPB(s string) bool {
	version, codec, ok := decodeVersionCodec(s)
	return ok && version == 1 && codec == codecDagPB
}

// IsV1Raw reports whether s decodes to a v1 CID whose codec is raw (a leaf
// carrying only bytes, no UnixFS envelope and no links).
func IsV1Raw(s string) bool {
	version, codec, ok := decodeVersionCodec(s)
	return ok && version == 1 && codec == codecRaw
}

// IsObject reports whether s identifies a dag-pb object, v0 or v1.
func IsObject(s string) bool {
	return IsV0Object(s) || IsV1DagPB(s)
}

// decodeVersionCodec multibase-decodes s as a CID and returns its version
// and codec. Malformed input (bad multibase prefix, truncated varints,
// anything cid.Decode rejects) returns ok=false and logs a warning; it is
// never propagated as an error.
func decodeVersionCodec(s string) (version int, codec uint64, ok bool) {
	if !IsV0Object(s) {
		if _, _, err := mbase.Decode(s); err != nil {
			logpkg.L.WithError(err).Warn("encountered malformed object/block id")
			return 0, 0, false
		}
	}

	c, err := cid.Decode(s)
	if err != nil {
		logpkg.L.WithError(err).Warn("encountered malformed object/block id")
		return 0, 0, false
	}

	return int(c.Version()), c.Prefix().Codec, true
}
