package vexfat

import "encoding/binary"

// Main boot sector field offsets, per the exFAT specification.
const (
	offVolumeLength      = 72
	offFatOffset         = 80
	offFatLength         = 84
	offClusterHeapOffset = 88
	offClusterCount      = 92
	offRootCluster       = 96
	offVolumeSerial      = 100
	offFsRevision        = 104
	offVolumeFlags       = 106
	offBytesPerSector    = 108
	offSectorsPerCluster = 109
	offNumberOfFats      = 110
	offDriveSelect       = 111
	offPercentInUse      = 112
	offBootSignature     = 510
)

// fillBootSector renders sector b of the 12-sector boot region. The
// backup boot region at sectors 12..23 is an exact copy, so callers
// pass b modulo 12.
func (d *Device) fillBootSector(b uint32, buf []byte) {
	switch {
	case b == 0:
		d.fillMainBootSector(buf)
	case b <= 8:
		// Extended boot sectors: empty, signature only.
		binary.LittleEndian.PutUint32(buf[508:], 0xaa550000)
	case b == 11:
		// Repeating 4-byte checksum of sectors 0..10.
		sum := d.bootChecksum()
		for i := 0; i < SectorSize; i += 4 {
			binary.LittleEndian.PutUint32(buf[i:], sum)
		}
	}
	// Sectors 9 (OEM parameters) and 10 (reserved) stay zero.
}

func (d *Device) fillMainBootSector(buf []byte) {
	copy(buf, []byte{0xeb, 0x76, 0x90})
	copy(buf[3:], "EXFAT   ")

	binary.LittleEndian.PutUint64(buf[offVolumeLength:], d.volumeLength)
	binary.LittleEndian.PutUint32(buf[offFatOffset:], d.fatOffset)
	binary.LittleEndian.PutUint32(buf[offFatLength:], d.fatLength)
	binary.LittleEndian.PutUint32(buf[offClusterHeapOffset:], d.heapOffset)
	binary.LittleEndian.PutUint32(buf[offClusterCount:], d.clusterCount)
	binary.LittleEndian.PutUint32(buf[offRootCluster:], d.root.firstCluster)
	binary.LittleEndian.PutUint32(buf[offVolumeSerial:], d.serial)
	binary.LittleEndian.PutUint16(buf[offFsRevision:], 0x0100) // 1.00

	buf[offBytesPerSector] = bytesPerSectorShift
	buf[offSectorsPerCluster] = sectorsPerClusterShift
	buf[offNumberOfFats] = 1
	buf[offDriveSelect] = 0x80
	buf[offPercentInUse] = 0xff // not tracked

	buf[offBootSignature] = 0x55
	buf[offBootSignature+1] = 0xaa
}

// bootChecksum computes the 32-bit rolling checksum over boot sectors
// 0..10, skipping the volatile VolumeFlags and PercentInUse bytes.
func (d *Device) bootChecksum() uint32 {
	var sum uint32
	var buf [SectorSize]byte

	for s := uint32(0); s < 11; s++ {
		clear(buf[:])
		d.fillBootSector(s, buf[:])

		for i, b := range buf {
			if s == 0 && (i == offVolumeFlags || i == offVolumeFlags+1 || i == offPercentInUse) {
				continue
			}
			sum = rotateChecksum32(sum) + uint32(b)
		}
	}
	return sum
}

func rotateChecksum32(sum uint32) uint32 {
	if sum&1 != 0 {
		return 0x80000000 + sum>>1
	}
	return sum >> 1
}
