package vexfat

import (
	"encoding/binary"
	"time"
	"unicode/utf16"

	"go.trai.ch/zerr"
)

// Directory entry types.
const (
	entryVolumeLabel = 0x83
	entryBitmap      = 0x81
	entryUpcase      = 0x82
	entryFile        = 0x85
	entryStream      = 0xc0
	entryFileName    = 0xc1
)

// File attribute flags.
const (
	attrDirectory uint16 = 0x10
	attrArchive   uint16 = 0x20
)

// Stream extension GeneralSecondaryFlags: allocation possible, no FAT
// chain (allocations are contiguous).
const streamFlags = 0x03

const (
	maxNameLength   = 255
	charsPerNameEnt = 15
)

const defaultLabel = "UDPBD"

// ErrNameTooLong is returned when a file or directory name exceeds the
// exFAT limit of 255 UTF-16 code units.
var ErrNameTooLong = zerr.New("name exceeds 255 characters")

func volumeLabelEntry(label string) []byte {
	e := make([]byte, dirEntrySize)
	e[0] = entryVolumeLabel

	u := utf16.Encode([]rune(label))
	if len(u) > 11 {
		u = u[:11]
	}
	e[1] = byte(len(u))
	for i, c := range u {
		binary.LittleEndian.PutUint16(e[2+2*i:], c)
	}
	return e
}

func bitmapEntry(firstCluster uint32, dataLength uint64) []byte {
	e := make([]byte, dirEntrySize)
	e[0] = entryBitmap
	binary.LittleEndian.PutUint32(e[20:], firstCluster)
	binary.LittleEndian.PutUint64(e[24:], dataLength)
	return e
}

func upcaseEntry(firstCluster uint32, dataLength uint64, checksum uint32) []byte {
	e := make([]byte, dirEntrySize)
	e[0] = entryUpcase
	binary.LittleEndian.PutUint32(e[4:], checksum)
	binary.LittleEndian.PutUint32(e[20:], firstCluster)
	binary.LittleEndian.PutUint64(e[24:], dataLength)
	return e
}

// fileEntrySet builds the file entry, stream extension and file name
// entries for one directory record, with the set checksum filled in.
func fileEntrySet(name string, attrs uint16, firstCluster uint32, dataLength uint64, ts time.Time) ([]byte, error) {
	u := utf16.Encode([]rune(name))
	if len(u) > maxNameLength {
		return nil, zerr.With(ErrNameTooLong, "name", name)
	}

	nameEntries := (len(u) + charsPerNameEnt - 1) / charsPerNameEnt
	secondaryCount := 1 + nameEntries
	set := make([]byte, (1+secondaryCount)*dirEntrySize)

	// File entry.
	file := set[:dirEntrySize]
	file[0] = entryFile
	file[1] = byte(secondaryCount)
	binary.LittleEndian.PutUint16(file[4:], attrs)
	stamp := dosTimestamp(ts)
	binary.LittleEndian.PutUint32(file[8:], stamp)  // create
	binary.LittleEndian.PutUint32(file[12:], stamp) // modify
	binary.LittleEndian.PutUint32(file[16:], stamp) // access

	// Stream extension.
	stream := set[dirEntrySize : 2*dirEntrySize]
	stream[0] = entryStream
	stream[1] = streamFlags
	stream[3] = byte(len(u))
	binary.LittleEndian.PutUint16(stream[4:], nameHash(u))
	binary.LittleEndian.PutUint64(stream[8:], dataLength) // valid data length
	binary.LittleEndian.PutUint32(stream[20:], firstCluster)
	binary.LittleEndian.PutUint64(stream[24:], dataLength)

	// File name entries, 15 characters each, zero padded.
	for i := 0; i < nameEntries; i++ {
		e := set[(2+i)*dirEntrySize : (3+i)*dirEntrySize]
		e[0] = entryFileName
		for j := 0; j < charsPerNameEnt; j++ {
			idx := i*charsPerNameEnt + j
			if idx >= len(u) {
				break
			}
			binary.LittleEndian.PutUint16(e[2+2*j:], u[idx])
		}
	}

	binary.LittleEndian.PutUint16(set[2:], entrySetChecksum(set))
	return set, nil
}

// entrySetChecksum computes the 16-bit rolling checksum over an entry
// set, skipping the checksum field itself.
func entrySetChecksum(set []byte) uint16 {
	var sum uint16
	for i, b := range set {
		if i == 2 || i == 3 {
			continue
		}
		sum = rotateChecksum16(sum) + uint16(b)
	}
	return sum
}

// nameHash computes the 16-bit hash of the upcased UTF-16 name.
func nameHash(name []uint16) uint16 {
	var sum uint16
	for _, c := range name {
		up := upcaseChar(c)
		sum = rotateChecksum16(sum) + up&0xff
		sum = rotateChecksum16(sum) + up>>8
	}
	return sum
}

func rotateChecksum16(sum uint16) uint16 {
	if sum&1 != 0 {
		return 0x8000 + sum>>1
	}
	return sum >> 1
}

func upcaseChar(c uint16) uint16 {
	if c >= 'a' && c <= 'z' {
		return c - 0x20
	}
	return c
}

// buildUpcaseTable renders the mandatory upcase table in its
// uncompressed form: identity mapping with ASCII letters folded.
func buildUpcaseTable() []byte {
	table := make([]byte, 0x10000*2)
	for c := 0; c < 0x10000; c++ {
		binary.LittleEndian.PutUint16(table[2*c:], upcaseChar(uint16(c)))
	}
	return table
}

// tableChecksum computes the 32-bit rolling checksum of the upcase table.
func tableChecksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum = rotateChecksum32(sum) + uint32(b)
	}
	return sum
}

// dosTimestamp packs a time into the exFAT/DOS timestamp format.
func dosTimestamp(t time.Time) uint32 {
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	return uint32(year-1980)<<25 |
		uint32(t.Month())<<21 |
		uint32(t.Day())<<16 |
		uint32(t.Hour())<<11 |
		uint32(t.Minute())<<5 |
		uint32(t.Second()/2)
}
