// SPDX-License-Identifier: Apache-2.0

package cidclass

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
)

func mustV1(t *testing.T, codec uint64, data string) string {
	t.Helper()
	pfx := cid.Prefix{
		Version:  1,
		Codec:    codec,
		MhType:   mhSha2256,
		MhLength: -1,
	}
	c, err := pfx.Sum([]byte(data))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	return c.String()
}

// sha2-256 multihash function code; avoids an extra import just for the
// constant.
const mhSha2256 = 0x12

func TestIsV0Object(t *testing.T) {
	assert.True(t, IsV0Object("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.False(t, IsV0Object("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"))
	assert.False(t, IsV0Object(""))
}

func TestIsV1DagPB(t *testing.T) {
	s := mustV1(t, 0x70, "hello-dagpb")
	assert.True(t, IsV1DagPB(s))
	assert.False(t, IsV1Raw(s))
}

func TestIsV1Raw(t *testing.T) {
	s := mustV1(t, 0x55, "hello-raw")
	assert.True(t, IsV1Raw(s))
	assert.False(t, IsV1DagPB(s))
}

func TestIsObject(t *testing.T) {
	assert.True(t, IsObject("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.True(t, IsObject(mustV1(t, 0x70, "x")))
	assert.False(t, IsObject(mustV1(t, 0x55, "x")))
}

func TestMalformedCIDIsUnknown(t *testing.T) {
	for _, s := range []string{"straight/to/nonsense", "not-a-cid-at-all", "!!!"} {
		assert.False(t, IsV0Object(s) && IsObject(s))
		assert.False(t, IsV1DagPB(s))
		assert.False(t, IsV1Raw(s))
		assert.False(t, IsObject(s))
	}
}
