// Package protocol implements the UDPBD wire format: a UDP block-device
// protocol used by the PlayStation 2 network driver. All fields are
// little-endian and packed.
package protocol

import (
	"encoding/binary"

	"go.trai.ch/zerr"
)

// Port is the fixed UDP port the server listens on.
const Port = 0xBDBD

const (
	// MaxPayload is the largest UDP payload a packet may occupy.
	MaxPayload = 1472

	// HeaderSize is the encoded size of Header.
	HeaderSize = 2
	// BlockTypeSize is the encoded size of BlockType.
	BlockTypeSize = 4

	// RDMAMaxPayload is the largest data payload of a single RDMA packet.
	RDMAMaxPayload = MaxPayload - HeaderSize - BlockTypeSize

	// InfoRequestSize is the encoded size of InfoRequest.
	InfoRequestSize = HeaderSize
	// InfoReplySize is the encoded size of InfoReply.
	InfoReplySize = HeaderSize + 8
	// ReadWriteRequestSize is the encoded size of ReadWriteRequest.
	ReadWriteRequestSize = HeaderSize + 6
	// WriteReplySize is the encoded size of WriteReply.
	WriteReplySize = HeaderSize + 4
)

// Command is the 5-bit command field of a packet header.
type Command uint8

// Protocol commands. Info, Read, Write and WriteRdma travel client to
// server; the rest are server replies.
const (
	CmdInfo      Command = 0x00
	CmdInfoReply Command = 0x01
	CmdRead      Command = 0x02
	CmdReadRdma  Command = 0x03
	CmdWrite     Command = 0x04
	CmdWriteRdma Command = 0x05
	CmdWriteDone Command = 0x06
)

// String returns the protocol name of the command.
func (c Command) String() string {
	switch c {
	case CmdInfo:
		return "UDPBD_CMD_INFO"
	case CmdInfoReply:
		return "UDPBD_CMD_INFO_REPLY"
	case CmdRead:
		return "UDPBD_CMD_READ"
	case CmdReadRdma:
		return "UDPBD_CMD_READ_RDMA"
	case CmdWrite:
		return "UDPBD_CMD_WRITE"
	case CmdWriteRdma:
		return "UDPBD_CMD_WRITE_RDMA"
	case CmdWriteDone:
		return "UDPBD_CMD_WRITE_DONE"
	default:
		return "UDPBD_CMD_UNKNOWN"
	}
}

// ErrShortPacket is returned when a datagram is too small for the
// message it claims to carry.
var ErrShortPacket = zerr.New("short packet")

// Header is the 2-byte packet header shared by every message.
// The encoded form must stay a "(multiple of 4) + 2" offset from the
// payload for RDMA on the PS2.
type Header struct {
	// Command is the 5-bit command.
	Command Command
	// CommandID increments with every new command sequence (3 bits).
	CommandID uint8
	// PacketID is 0 for requests; replies count up from 1.
	PacketID uint8
}

func (h Header) raw() uint16 {
	return uint16(h.Command)&0x1f |
		uint16(h.CommandID&0x07)<<5 |
		uint16(h.PacketID)<<8
}

func headerFromRaw(v uint16) Header {
	return Header{
		Command:   Command(v & 0x1f),
		CommandID: uint8(v >> 5 & 0x07),
		PacketID:  uint8(v >> 8),
	}
}

// AppendTo appends the encoded header to b.
func (h Header) AppendTo(b []byte) []byte {
	return binary.LittleEndian.AppendUint16(b, h.raw())
}

// DecodeHeader decodes the packet header from the start of a datagram.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, zerr.With(ErrShortPacket, "len", len(buf))
	}
	return headerFromRaw(binary.LittleEndian.Uint16(buf)), nil
}

// InfoRequest asks a server for its block-device geometry. It may be
// broadcast to discover servers on the network.
type InfoRequest struct {
	Header Header
}

// DecodeInfoRequest decodes an InfoRequest.
func DecodeInfoRequest(buf []byte) (InfoRequest, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return InfoRequest{}, err
	}
	return InfoRequest{Header: h}, nil
}

// InfoReply carries the device geometry back to the client.
type InfoReply struct {
	Header      Header
	SectorSize  uint32
	SectorCount uint32
}

// Encode returns the wire form of the reply.
func (r InfoReply) Encode() []byte {
	b := make([]byte, 0, InfoReplySize)
	b = r.Header.AppendTo(b)
	b = binary.LittleEndian.AppendUint32(b, r.SectorSize)
	b = binary.LittleEndian.AppendUint32(b, r.SectorCount)
	return b
}

// ReadWriteRequest starts a read or write sequence.
//
// Read sequence:  client ReadWriteRequest, server one or more RDMA packets.
// Write sequence: client ReadWriteRequest, client one or more RDMA
// packets, server WriteReply.
type ReadWriteRequest struct {
	Header      Header
	Sector      uint32
	SectorCount uint16
}

// DecodeReadWriteRequest decodes a read or write request.
func DecodeReadWriteRequest(buf []byte) (ReadWriteRequest, error) {
	if len(buf) < ReadWriteRequestSize {
		return ReadWriteRequest{}, zerr.With(ErrShortPacket, "len", len(buf))
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return ReadWriteRequest{}, err
	}
	return ReadWriteRequest{
		Header:      h,
		Sector:      binary.LittleEndian.Uint32(buf[2:]),
		SectorCount: binary.LittleEndian.Uint16(buf[6:]),
	}, nil
}

// WriteReply acknowledges a completed write sequence.
type WriteReply struct {
	Header Header
	Result int32
}

// Encode returns the wire form of the reply.
func (r WriteReply) Encode() []byte {
	b := make([]byte, 0, WriteReplySize)
	b = r.Header.AppendTo(b)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.Result))
	return b
}

// BlockType describes the payload layout of an RDMA packet.
//
// Valid block sizes and resulting max payloads:
//
//	  4 * 366 = 1464 bytes
//	  8 * 183 = 1464 bytes
//	 16 *  91 = 1456 bytes
//	 32 *  45 = 1440 bytes
//	 64 *  22 = 1408 bytes
//	128 *  11 = 1408 bytes (default)
//	256 *   5 = 1280 bytes
//	512 *   2 = 1024 bytes
type BlockType struct {
	// Shift selects the block size: 1 << (Shift+2) bytes, 0..7.
	Shift uint8
	// Count is the number of blocks in the packet, 1..366.
	Count uint16
}

func (t BlockType) raw() uint32 {
	return uint32(t.Shift)&0x0f | uint32(t.Count&0x1ff)<<4
}

func blockTypeFromRaw(v uint32) BlockType {
	return BlockType{
		Shift: uint8(v & 0x0f),
		Count: uint16(v >> 4 & 0x1ff),
	}
}

// BlockSize returns the size of one block in bytes.
func (t BlockType) BlockSize() int {
	return 1 << (t.Shift + 2)
}

// PayloadLen returns the total payload length the block type describes.
func (t BlockType) PayloadLen() int {
	return int(t.Count) * t.BlockSize()
}

// RDMA is the bulk-transfer packet, the heart of the protocol. Data
// length must equal Block.PayloadLen().
type RDMA struct {
	Header Header
	Block  BlockType
	Data   []byte
}

// Encode returns the wire form of the packet.
func (p RDMA) Encode() []byte {
	b := make([]byte, 0, HeaderSize+BlockTypeSize+len(p.Data))
	b = p.Header.AppendTo(b)
	b = binary.LittleEndian.AppendUint32(b, p.Block.raw())
	return append(b, p.Data...)
}

// DecodeRDMA decodes an RDMA packet, validating the payload length
// against the block type.
func DecodeRDMA(buf []byte) (RDMA, error) {
	if len(buf) < HeaderSize+BlockTypeSize {
		return RDMA{}, zerr.With(ErrShortPacket, "len", len(buf))
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return RDMA{}, err
	}
	bt := blockTypeFromRaw(binary.LittleEndian.Uint32(buf[HeaderSize:]))
	data := buf[HeaderSize+BlockTypeSize:]
	if bt.PayloadLen() > len(data) {
		err := zerr.With(ErrShortPacket, "payload_len", bt.PayloadLen())
		return RDMA{}, zerr.With(err, "data_len", len(data))
	}
	return RDMA{
		Header: h,
		Block:  bt,
		Data:   data[:bt.PayloadLen()],
	}, nil
}
