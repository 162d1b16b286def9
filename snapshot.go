package condset

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/condset/internal/blockcodec"
	"github.com/hupe1980/condset/internal/conv"
	"github.com/hupe1980/condset/internal/pbwt"
)

// Compression selects the block compression of a snapshot.
type Compression = blockcodec.Compression

// Snapshot compressions.
const (
	CompressionNone = blockcodec.None
	CompressionLZ4  = blockcodec.LZ4
	CompressionZSTD = blockcodec.ZSTD
)

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	return blockcodec.ParseCompression(s)
}

const (
	snapshotVersion   = 1
	snapshotBlockSize = 1 << 20
	slotsPerChunk     = 16 << 10
)

var snapshotMagic = [4]byte{'C', 'S', 'P', 'B'}

type snapshotHeader struct {
	Magic         [4]byte
	Version       uint8
	Compression   uint8
	_             [2]byte
	Depth         uint32
	NumHaplotypes uint32
	NumGroups     uint32
	NumSites      uint32
	NumEvaluated  uint32
	NumSelected   uint32
}

// WriteSnapshot writes the neighbor table to w and returns the number of
// bytes written. Site selection is not stored; Restore recomputes it from
// the same variant map.
func (cs *ConditioningSet) WriteSnapshot(w io.Writer, c Compression) (int64, error) {
	hdr := snapshotHeader{
		Magic:       snapshotMagic,
		Version:     snapshotVersion,
		Compression: uint8(c),
	}
	var err error
	for _, f := range []struct {
		dst *uint32
		v   int
	}{
		{&hdr.Depth, cs.depth},
		{&hdr.NumHaplotypes, cs.nHap},
		{&hdr.NumGroups, cs.nGroups},
		{&hdr.NumSites, cs.nSites},
		{&hdr.NumEvaluated, cs.NumEvaluated()},
		{&hdr.NumSelected, cs.NumSelected()},
	} {
		if *f.dst, err = conv.IntToUint32(f.v); err != nil {
			return 0, fmt.Errorf("snapshot header: %w", err)
		}
	}
	if c > CompressionZSTD {
		return 0, fmt.Errorf("condset: unknown snapshot compression %s", c)
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return 0, err
	}
	n := int64(binary.Size(hdr))

	bw := blockcodec.NewWriter(w, c, snapshotBlockSize)
	slots := cs.table.Slots()
	for len(slots) > 0 {
		chunk := slots[:min(len(slots), slotsPerChunk)]
		if err := binary.Write(bw, binary.LittleEndian, chunk); err != nil {
			return n + bw.BytesWritten(), err
		}
		slots = slots[len(chunk):]
	}
	err = bw.Flush()
	return n + bw.BytesWritten(), err
}

// Restore rebuilds a ConditioningSet from a snapshot instead of sweeping
// panel. Site selection runs again with opts and must reproduce the
// dimensions recorded in the snapshot; the depth is taken from the
// snapshot.
func Restore(variants VariantMap, panel Panel, r io.Reader, optFns ...Option) (*ConditioningSet, error) {
	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("snapshot header: %w", err)
	}
	if hdr.Magic != snapshotMagic || hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: bad magic or version %d", ErrSnapshotMismatch, hdr.Version)
	}
	c := Compression(hdr.Compression)
	if c > CompressionZSTD {
		return nil, fmt.Errorf("%w: unknown compression %s", ErrSnapshotMismatch, c)
	}

	depth, err := conv.Uint32ToInt(hdr.Depth)
	if err != nil {
		return nil, err
	}
	o := applyOptions(append(optFns[:len(optFns):len(optFns)], WithDepth(depth)))
	cs, _, err := initialize(variants, panel, o)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		got  uint32
		want int
	}{
		{"haplotypes", hdr.NumHaplotypes, cs.nHap},
		{"groups", hdr.NumGroups, cs.nGroups},
		{"sites", hdr.NumSites, cs.nSites},
		{"evaluated sites", hdr.NumEvaluated, cs.NumEvaluated()},
		{"selected sites", hdr.NumSelected, cs.NumSelected()},
	} {
		if int64(f.got) != int64(f.want) {
			return nil, fmt.Errorf("%w: snapshot has %d %s, set has %d", ErrSnapshotMismatch, f.got, f.name, f.want)
		}
	}

	start := time.Now()
	if err := cs.reserveTable(); err != nil {
		return nil, err
	}
	cs.table, err = readTable(blockcodec.NewReader(r, c), cs.depth, cs.nHap, cs.nGroups)
	elapsed := time.Since(start)
	if err != nil {
		cs.rc.ReleaseMemory(cs.tableBytes())
	}
	cs.logger.LogBuild(context.Background(), cs.nGroups, cs.depth, elapsed, err)
	cs.metrics.RecordBuild(cs.nGroups, elapsed, err)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func readTable(r io.Reader, depth, nHap, nGroups int) (*pbwt.Table, error) {
	t, err := pbwt.NewTable(depth, nHap, nGroups)
	if err != nil {
		return nil, err
	}
	slots := t.Slots()
	for off := 0; off < len(slots); off += slotsPerChunk {
		chunk := slots[off:min(len(slots), off+slotsPerChunk)]
		if err := binary.Read(r, binary.LittleEndian, chunk); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("snapshot table: %w", err)
		}
	}
	t, err = pbwt.TableFromSlots(depth, nHap, nGroups, slots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotMismatch, err)
	}
	return t, nil
}
