// Package vexfat synthesizes a read-only exFAT block device on the fly.
//
// Nothing is materialized on disk: boot sectors, FAT, allocation bitmap,
// upcase table and directory clusters are generated per sector on read,
// and file data is served straight from the mapped host files. Writes
// are accepted and discarded.
package vexfat

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// SectorSize is the fixed logical sector size.
	SectorSize = 512

	bytesPerSectorShift    = 9
	sectorsPerClusterShift = 3

	// SectorsPerCluster is the fixed cluster size in sectors.
	SectorsPerCluster = 1 << sectorsPerClusterShift
	// ClusterBytes is the fixed cluster size in bytes.
	ClusterBytes = SectorSize * SectorsPerCluster

	// firstClusterIndex is the index of the first cluster of the
	// cluster heap, per the exFAT specification.
	firstClusterIndex = 2

	bootRegionSectors = 12
	fatEntrySize      = 4
	dirEntrySize      = 32
)

var (
	// ErrDirectoryFull is returned when a directory's allocated cluster
	// cannot hold another entry set.
	ErrDirectoryFull = zerr.New("directory cluster is full")

	// ErrHeapExhausted is returned when the cluster heap cannot hold
	// another allocation.
	ErrHeapExhausted = zerr.New("cluster heap exhausted")

	// ErrUnknownCluster is returned when a directory operation names a
	// cluster that is not a directory.
	ErrUnknownCluster = zerr.New("no directory at cluster")
)

type extentKind int

const (
	extentBitmap extentKind = iota
	extentUpcase
	extentDir
	extentFile
)

// extent is one contiguous allocation in the cluster heap.
type extent struct {
	kind         extentKind
	firstCluster uint32
	clusters     uint32
	dir          *directory
	file         *mappedFile
}

func (e *extent) contains(cluster uint32) bool {
	return cluster >= e.firstCluster && cluster < e.firstCluster+e.clusters
}

func (e *extent) lastCluster() uint32 {
	return e.firstCluster + e.clusters - 1
}

type directory struct {
	firstCluster uint32
	clusters     uint32
	entries      []byte
}

type mappedFile struct {
	path string
	size int64

	mu sync.Mutex
	f  *os.File
}

// Device is a virtual exFAT volume. It implements io.ReaderAt and
// io.WriterAt over the raw sector image.
type Device struct {
	clusterCount uint32
	fatOffset    uint32 // sectors
	fatLength    uint32 // sectors
	heapOffset   uint32 // sectors
	volumeLength uint64 // sectors
	serial       uint32
	now          time.Time

	nextCluster uint32
	extents     []*extent
	dirs        map[uint32]*directory
	root        *directory

	bitmapBytes uint64
	upcase      []byte
	upcaseSum   uint32
}

// NewDevice creates a virtual volume with the given cluster-heap size
// and a root directory carrying the allocation bitmap, the upcase table
// and the volume label.
func NewDevice(clusterCount uint32) (*Device, error) {
	if clusterCount < 8 {
		return nil, zerr.With(ErrHeapExhausted, "cluster_count", clusterCount)
	}

	fatOffset := uint32(24)
	fatEntries := uint64(clusterCount) + firstClusterIndex
	fatLength := uint32((fatEntries*fatEntrySize + SectorSize - 1) / SectorSize)
	heapOffset := fatOffset + fatLength

	d := &Device{
		clusterCount: clusterCount,
		fatOffset:    fatOffset,
		fatLength:    fatLength,
		heapOffset:   heapOffset,
		volumeLength: uint64(heapOffset) + uint64(clusterCount)*SectorsPerCluster,
		serial:       uint32(time.Now().UnixNano()),
		now:          time.Now(),
		nextCluster:  firstClusterIndex,
		dirs:         make(map[uint32]*directory),
		bitmapBytes:  (uint64(clusterCount) + 7) / 8,
	}

	d.upcase = buildUpcaseTable()
	d.upcaseSum = tableChecksum(d.upcase)

	bitmapClusters := clustersFor(int64(d.bitmapBytes))
	bitmapFirst, err := d.allocate(bitmapClusters, &extent{kind: extentBitmap})
	if err != nil {
		return nil, err
	}

	upcaseClusters := clustersFor(int64(len(d.upcase)))
	upcaseFirst, err := d.allocate(upcaseClusters, &extent{kind: extentUpcase})
	if err != nil {
		return nil, err
	}

	root, err := d.newDirectory()
	if err != nil {
		return nil, err
	}
	d.root = root

	root.entries = append(root.entries, volumeLabelEntry(defaultLabel)...)
	root.entries = append(root.entries, bitmapEntry(bitmapFirst, d.bitmapBytes)...)
	root.entries = append(root.entries, upcaseEntry(upcaseFirst, uint64(len(d.upcase)), d.upcaseSum)...)

	return d, nil
}

// RootCluster returns the first cluster of the root directory.
func (d *Device) RootCluster() uint32 {
	return d.root.firstCluster
}

// SectorCount returns the total size of the volume in sectors.
func (d *Device) SectorCount() uint32 {
	return uint32(d.volumeLength)
}

// allocate reserves n contiguous clusters and registers the extent.
func (d *Device) allocate(n uint32, e *extent) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if uint64(d.nextCluster)+uint64(n) > uint64(d.clusterCount)+firstClusterIndex {
		err := zerr.With(ErrHeapExhausted, "requested", n)
		return 0, zerr.With(err, "free", d.clusterCount+firstClusterIndex-d.nextCluster)
	}

	e.firstCluster = d.nextCluster
	e.clusters = n
	d.nextCluster += n
	d.extents = append(d.extents, e)
	return e.firstCluster, nil
}

func (d *Device) newDirectory() (*directory, error) {
	dir := &directory{}
	first, err := d.allocate(1, &extent{kind: extentDir, dir: dir})
	if err != nil {
		return nil, err
	}
	dir.firstCluster = first
	dir.clusters = 1
	d.dirs[first] = dir
	return dir, nil
}

// AddDirectory creates an empty subdirectory under the directory at
// parent and returns its first cluster.
func (d *Device) AddDirectory(parent uint32, name string) (uint32, error) {
	p, ok := d.dirs[parent]
	if !ok {
		return 0, zerr.With(ErrUnknownCluster, "cluster", parent)
	}

	dir, err := d.newDirectory()
	if err != nil {
		return 0, err
	}

	set, err := fileEntrySet(name, attrDirectory, dir.firstCluster, ClusterBytes, d.now)
	if err != nil {
		return 0, err
	}
	if err := p.append(set); err != nil {
		return 0, err
	}
	return dir.firstCluster, nil
}

// AddFile maps a host file into the directory at parent under its base
// name. File content is read from the host file on demand.
func (d *Device) AddFile(parent uint32, path string) error {
	p, ok := d.dirs[parent]
	if !ok {
		return zerr.With(ErrUnknownCluster, "cluster", parent)
	}

	info, err := os.Stat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat mapped file"), "path", path)
	}

	mf := &mappedFile{path: path, size: info.Size()}
	var first uint32
	if info.Size() > 0 {
		first, err = d.allocate(clustersFor(info.Size()), &extent{kind: extentFile, file: mf})
		if err != nil {
			return err
		}
	}

	set, err := fileEntrySet(info.Name(), attrArchive, first, uint64(info.Size()), d.now)
	if err != nil {
		return err
	}
	return p.append(set)
}

func (dir *directory) append(set []byte) error {
	if len(dir.entries)+len(set) > int(dir.clusters)*ClusterBytes {
		return zerr.With(ErrDirectoryFull, "cluster", dir.firstCluster)
	}
	dir.entries = append(dir.entries, set...)
	return nil
}

func clustersFor(size int64) uint32 {
	return uint32((size + ClusterBytes - 1) / ClusterBytes)
}

// ReadAt fills p with the raw volume image starting at off. Reads past
// the end of the volume return io.EOF; unmapped regions read as zeros.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	volBytes := int64(d.volumeLength) * SectorSize
	if off < 0 || off >= volBytes {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < volBytes {
		sector := uint64(off / SectorSize)
		inSector := int(off % SectorSize)

		var buf [SectorSize]byte
		d.fillSector(sector, buf[:])

		c := copy(p[n:], buf[inSector:])
		n += c
		off += int64(c)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt accepts and discards writes; the volume is virtual.
func (d *Device) WriteAt(p []byte, _ int64) (int, error) {
	return len(p), nil
}

// fillSector renders one 512-byte sector of the volume image.
func (d *Device) fillSector(sector uint64, buf []byte) {
	clear(buf)

	switch {
	case sector < 2*bootRegionSectors:
		d.fillBootSector(uint32(sector%bootRegionSectors), buf)
	case sector >= uint64(d.fatOffset) && sector < uint64(d.heapOffset):
		d.fillFatSector(uint32(sector) - d.fatOffset, buf)
	case sector >= uint64(d.heapOffset) && sector < d.volumeLength:
		heapSector := uint32(sector) - d.heapOffset
		cluster := heapSector/SectorsPerCluster + firstClusterIndex
		inCluster := int64(heapSector%SectorsPerCluster) * SectorSize
		d.fillHeapSector(cluster, inCluster, buf)
	}
}

func (d *Device) fillFatSector(fatSector uint32, buf []byte) {
	entry := uint64(fatSector) * (SectorSize / fatEntrySize)
	for i := 0; i < SectorSize/fatEntrySize; i++ {
		binary.LittleEndian.PutUint32(buf[i*fatEntrySize:], d.fatEntry(entry+uint64(i)))
	}
}

// fatEntry returns the FAT value for a cluster index. Allocation is
// contiguous, so a chain entry points to the next cluster except at an
// extent boundary.
func (d *Device) fatEntry(idx uint64) uint32 {
	switch idx {
	case 0:
		return 0xfffffff8 // media descriptor
	case 1:
		return 0xffffffff
	}
	if idx >= uint64(d.nextCluster) {
		return 0 // free
	}

	cluster := uint32(idx)
	e := d.extentAt(cluster)
	if e == nil || cluster == e.lastCluster() {
		return 0xffffffff // end of chain
	}
	return cluster + 1
}

func (d *Device) extentAt(cluster uint32) *extent {
	i := sort.Search(len(d.extents), func(i int) bool {
		return d.extents[i].lastCluster() >= cluster
	})
	if i < len(d.extents) && d.extents[i].contains(cluster) {
		return d.extents[i]
	}
	return nil
}

func (d *Device) fillHeapSector(cluster uint32, inCluster int64, buf []byte) {
	e := d.extentAt(cluster)
	if e == nil {
		return
	}
	off := int64(cluster-e.firstCluster)*ClusterBytes + inCluster

	switch e.kind {
	case extentBitmap:
		d.fillBitmap(off, buf)
	case extentUpcase:
		copyAt(buf, d.upcase, off)
	case extentDir:
		copyAt(buf, e.dir.entries, off)
	case extentFile:
		// Short reads and holes stay zero.
		_, _ = e.file.readAt(buf, off)
	}
}

// fillBitmap renders the allocation bitmap. Clusters are allocated as
// one contiguous run starting at the heap, so the bitmap is a prefix of
// ones followed by zeros.
func (d *Device) fillBitmap(off int64, buf []byte) {
	used := uint64(d.nextCluster - firstClusterIndex)
	fullBytes := used / 8

	for i := range buf {
		byteIdx := uint64(off) + uint64(i)
		if byteIdx >= d.bitmapBytes {
			break
		}
		switch {
		case byteIdx < fullBytes:
			buf[i] = 0xff
		case byteIdx == fullBytes:
			buf[i] = byte(1<<(used%8)) - 1
		}
	}
}

func (mf *mappedFile) readAt(p []byte, off int64) (int, error) {
	if off >= mf.size {
		return 0, io.EOF
	}

	mf.mu.Lock()
	defer mf.mu.Unlock()

	if mf.f == nil {
		f, err := os.Open(mf.path)
		if err != nil {
			return 0, zerr.With(zerr.Wrap(err, "failed to open mapped file"), "path", mf.path)
		}
		mf.f = f
	}

	if max := mf.size - off; int64(len(p)) > max {
		p = p[:max]
	}
	return mf.f.ReadAt(p, off)
}

func copyAt(dst, src []byte, off int64) {
	if off < 0 || off >= int64(len(src)) {
		return
	}
	copy(dst, src[off:])
}
