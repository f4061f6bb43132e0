package vexfat_test

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/vexfat"
)

const testClusterCount = 4096 // 16 MiB heap

func readSector(t *testing.T, d *vexfat.Device, sector uint32) []byte {
	t.Helper()
	buf := make([]byte, vexfat.SectorSize)
	n, err := d.ReadAt(buf, int64(sector)*vexfat.SectorSize)
	require.NoError(t, err)
	require.Equal(t, vexfat.SectorSize, n)
	return buf
}

type geometry struct {
	volumeLength uint64
	fatOffset    uint32
	fatLength    uint32
	heapOffset   uint32
	clusterCount uint32
	rootCluster  uint32
}

func readGeometry(t *testing.T, d *vexfat.Device) geometry {
	t.Helper()
	boot := readSector(t, d, 0)
	return geometry{
		volumeLength: binary.LittleEndian.Uint64(boot[72:]),
		fatOffset:    binary.LittleEndian.Uint32(boot[80:]),
		fatLength:    binary.LittleEndian.Uint32(boot[84:]),
		heapOffset:   binary.LittleEndian.Uint32(boot[88:]),
		clusterCount: binary.LittleEndian.Uint32(boot[92:]),
		rootCluster:  binary.LittleEndian.Uint32(boot[96:]),
	}
}

func TestDevice_BootSector(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)

	boot := readSector(t, d, 0)
	assert.Equal(t, []byte{0xeb, 0x76, 0x90}, boot[:3])
	assert.Equal(t, "EXFAT   ", string(boot[3:11]))
	assert.Equal(t, []byte{0x55, 0xaa}, boot[510:])
	assert.Equal(t, byte(9), boot[108])  // 512-byte sectors
	assert.Equal(t, byte(3), boot[109])  // 8 sectors per cluster
	assert.Equal(t, byte(1), boot[110])  // one FAT

	g := readGeometry(t, d)
	assert.Equal(t, uint32(testClusterCount), g.clusterCount)
	assert.Equal(t, g.fatOffset+g.fatLength, g.heapOffset)
	assert.Equal(t, uint64(g.heapOffset)+testClusterCount*8, g.volumeLength)
	assert.Equal(t, g.rootCluster, d.RootCluster())
	assert.Equal(t, uint32(g.volumeLength), d.SectorCount())

	// FAT must hold clusterCount+2 entries.
	assert.GreaterOrEqual(t, uint64(g.fatLength)*512/4, uint64(testClusterCount)+2)
}

func TestDevice_BootChecksumAndBackup(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)

	var sum uint32
	for s := uint32(0); s < 11; s++ {
		sector := readSector(t, d, s)
		for i, b := range sector {
			if s == 0 && (i == 106 || i == 107 || i == 112) {
				continue
			}
			if sum&1 != 0 {
				sum = 0x80000000 + sum>>1 + uint32(b)
			} else {
				sum = sum>>1 + uint32(b)
			}
		}
	}

	check := readSector(t, d, 11)
	for i := 0; i < vexfat.SectorSize; i += 4 {
		require.Equal(t, sum, binary.LittleEndian.Uint32(check[i:]))
	}

	// Backup region is an exact copy.
	for s := uint32(0); s < 12; s++ {
		assert.Equal(t, readSector(t, d, s), readSector(t, d, s+12))
	}
}

func TestDevice_FatRegion(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)
	g := readGeometry(t, d)

	fat := readSector(t, d, g.fatOffset)
	assert.Equal(t, uint32(0xfffffff8), binary.LittleEndian.Uint32(fat[0:]))
	assert.Equal(t, uint32(0xffffffff), binary.LittleEndian.Uint32(fat[4:]))

	// Root directory is a single cluster: its chain terminates.
	root := g.rootCluster
	require.Less(t, root, uint32(128))
	assert.Equal(t, uint32(0xffffffff), binary.LittleEndian.Uint32(fat[4*root:]))

	// Far end of the FAT is free space.
	last := readSector(t, d, g.heapOffset-1)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(last[len(last)-4:]))
}

func TestDevice_AllocationBitmap(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)
	g := readGeometry(t, d)

	// The bitmap lives in the first heap cluster.
	bitmap := readSector(t, d, g.heapOffset)

	// Everything up to and including the root directory is allocated;
	// root is the highest cluster so far.
	used := int(g.rootCluster) - 2 + 1
	for bit := 0; bit < used; bit++ {
		assert.NotZero(t, bitmap[bit/8]&(1<<(bit%8)), "cluster %d should be allocated", bit+2)
	}
	assert.Zero(t, bitmap[used/8]&(1<<(used%8)), "cluster %d should be free", used+2)
}

func TestDevice_RootDirectoryEntries(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)
	g := readGeometry(t, d)

	rootSector := g.heapOffset + (g.rootCluster-2)*8
	dir := readSector(t, d, rootSector)

	assert.Equal(t, byte(0x83), dir[0])    // volume label
	assert.Equal(t, byte(0x81), dir[32])   // allocation bitmap
	assert.Equal(t, byte(0x82), dir[64])   // upcase table
	assert.Equal(t, byte(0x00), dir[96])   // end of directory

	// Bitmap entry covers the cluster heap.
	bitmapLen := binary.LittleEndian.Uint64(dir[32+24:])
	assert.Equal(t, uint64((testClusterCount+7)/8), bitmapLen)

	// Upcase entry points at a full uncompressed table.
	upcaseLen := binary.LittleEndian.Uint64(dir[64+24:])
	assert.Equal(t, uint64(0x20000), upcaseLen)
}

func TestDevice_AddDirectory(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)
	g := readGeometry(t, d)

	cluster, err := d.AddDirectory(d.RootCluster(), "DVD")
	require.NoError(t, err)
	require.Greater(t, cluster, g.rootCluster)

	rootSector := g.heapOffset + (g.rootCluster-2)*8
	dir := readSector(t, d, rootSector)

	// Entry set starts after label, bitmap and upcase entries.
	set := dir[96:]
	assert.Equal(t, byte(0x85), set[0])
	assert.Equal(t, byte(2), set[1]) // stream + one name entry
	assert.Equal(t, uint16(0x10), binary.LittleEndian.Uint16(set[4:])&0x10, "directory attribute")

	stream := set[32:]
	assert.Equal(t, byte(0xc0), stream[0])
	assert.Equal(t, byte(3), stream[3]) // name length
	assert.Equal(t, cluster, binary.LittleEndian.Uint32(stream[20:]))

	nameEnt := set[64:]
	assert.Equal(t, byte(0xc1), nameEnt[0])
	assert.Equal(t, uint16('D'), binary.LittleEndian.Uint16(nameEnt[2:]))
	assert.Equal(t, uint16('V'), binary.LittleEndian.Uint16(nameEnt[4:]))

	// Entry set checksum is valid (16-bit rolling, bytes 2-3 skipped).
	var sum uint16
	for i, b := range set[:96] {
		if i == 2 || i == 3 {
			continue
		}
		if sum&1 != 0 {
			sum = 0x8000 + sum>>1 + uint16(b)
		} else {
			sum = sum>>1 + uint16(b)
		}
	}
	assert.Equal(t, sum, binary.LittleEndian.Uint16(set[2:]))
}

func TestDevice_AddFile_ContentReadThrough(t *testing.T) {
	content := make([]byte, 10000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "game.iso")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)
	g := readGeometry(t, d)

	dvd, err := d.AddDirectory(d.RootCluster(), "DVD")
	require.NoError(t, err)
	require.NoError(t, d.AddFile(dvd, path))

	// Locate the file's first cluster via its stream entry.
	dvdSector := g.heapOffset + (dvd-2)*8
	dir := readSector(t, d, dvdSector)
	require.Equal(t, byte(0x85), dir[0])
	stream := dir[32:]
	require.Equal(t, byte(0xc0), stream[0])
	assert.Equal(t, uint64(len(content)), binary.LittleEndian.Uint64(stream[24:]))
	first := binary.LittleEndian.Uint32(stream[20:])

	fileOff := (int64(g.heapOffset) + int64(first-2)*8) * 512
	got := make([]byte, len(content))
	n, err := d.ReadAt(got, fileOff)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	assert.Equal(t, content, got)

	// The tail of the final cluster reads as zeros.
	tail := make([]byte, 512)
	_, err = d.ReadAt(tail, fileOff+int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 512), tail)
}

func TestDevice_ReadPastEndAndWrites(t *testing.T) {
	d, err := vexfat.NewDevice(testClusterCount)
	require.NoError(t, err)

	end := int64(d.SectorCount()) * vexfat.SectorSize
	buf := make([]byte, 16)

	_, err = d.ReadAt(buf, end)
	assert.ErrorIs(t, err, io.EOF)

	n, err := d.ReadAt(buf, end-8)
	assert.Equal(t, 8, n)
	assert.ErrorIs(t, err, io.EOF)

	// Writes are accepted and discarded.
	n, err = d.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
