// SPDX-License-Identifier: Apache-2.0

// Package unixfs decodes the UnixFS "Data" protobuf message carried in a
// dag-pb node's payload. The message has four stable fields, so this
// decodes the wire format directly with protowire rather than shipping a
// generated .pb.go for a message this small.
package unixfs

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nydus-snapshotter-labs/ipfs-fuse-mount/pkg/errdefs"
)

// Type enumerates the UnixFS node kinds, matching the wire values of the
// UnixFS.Data.DataType protobuf enum.
type Type int32

const (
	TypeRaw Type = iota
	TypeDirectory
	TypeFile
	TypeMetadata
	TypeSymlink
	TypeHAMTShard
)

func (t Type) String() string {
	switch t {
	case TypeRaw:
		return "Raw"
	case TypeDirectory:
		return "Directory"
	case TypeFile:
		return "File"
	case TypeMetadata:
		return "Metadata"
	case TypeSymlink:
		return "Symlink"
	case TypeHAMTShard:
		return "HAMTShard"
	default:
		return "Unknown"
	}
}

// Data is the decoded UnixFS node: its kind, any bytes inlined directly in
// this node, the file's total logical size, and the logical size
// contributed by each of the node's children, in link order.
type Data struct {
	Type       Type
	InlineData []byte
	Filesize   uint64
	Blocksizes []uint64
}

const (
	fieldType       = 1
	fieldData       = 2
	fieldFilesize   = 3
	fieldBlocksizes = 4
)

// Decode parses raw as a UnixFS Data message. Decoding failures (a
// malformed tag, a truncated varint or length-delimited value) surface as
// errdefs.ErrInvalidPath. The wire type of the four known fields is not
// checked: each is read as the type its field number declares.
func Decode(raw []byte) (*Data, error) {
	d := &Data{}

	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "parse unixfs tag")
		}
		b = b[n:]

		switch num {
		case fieldType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "parse unixfs Type")
			}
			d.Type = Type(v)
			b = b[n:]
		case fieldData:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "parse unixfs Data")
			}
			d.InlineData = append([]byte(nil), v...)
			b = b[n:]
		case fieldFilesize:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "parse unixfs filesize")
			}
			d.Filesize = v
			b = b[n:]
		case fieldBlocksizes:
			// blocksizes is `repeated uint64`, sent unpacked (each
			// occurrence its own tag+varint) by go-ipfs's encoder.
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "parse unixfs blocksizes")
			}
			d.Blocksizes = append(d.Blocksizes, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errdefs.Wrap(errdefs.KindInvalidPath, protowire.ParseError(n), "skip unknown unixfs field")
			}
			b = b[n:]
		}
	}

	return d, nil
}
