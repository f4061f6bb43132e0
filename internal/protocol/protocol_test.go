package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/protocol"
)

func TestHeader_BitLayout(t *testing.T) {
	h := protocol.Header{
		Command:   protocol.CmdInfoReply,
		CommandID: 3,
		PacketID:  1,
	}

	// cmd 0x01 in bits 0-4, id 3 in bits 5-7, pkt 1 in bits 8-15.
	b := h.AppendTo(nil)
	require.Len(t, b, protocol.HeaderSize)
	assert.Equal(t, byte(0x61), b[0])
	assert.Equal(t, byte(0x01), b[1])

	decoded, err := protocol.DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeHeader_Short(t *testing.T) {
	_, err := protocol.DecodeHeader([]byte{0x02})
	assert.ErrorIs(t, err, protocol.ErrShortPacket)
}

func TestReadWriteRequest_Roundtrip(t *testing.T) {
	// Sector 0x11223344, count 0x0102, header cmd=Read id=5 pkt=0.
	buf := []byte{0x02 | 5<<5, 0x00, 0x44, 0x33, 0x22, 0x11, 0x02, 0x01}

	req, err := protocol.DecodeReadWriteRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdRead, req.Header.Command)
	assert.Equal(t, uint8(5), req.Header.CommandID)
	assert.Equal(t, uint32(0x11223344), req.Sector)
	assert.Equal(t, uint16(0x0102), req.SectorCount)

	_, err = protocol.DecodeReadWriteRequest(buf[:6])
	assert.ErrorIs(t, err, protocol.ErrShortPacket)
}

func TestInfoReply_Encode(t *testing.T) {
	reply := protocol.InfoReply{
		Header: protocol.Header{
			Command:   protocol.CmdInfoReply,
			CommandID: 2,
			PacketID:  1,
		},
		SectorSize:  512,
		SectorCount: 0x01400000,
	}

	b := reply.Encode()
	require.Len(t, b, protocol.InfoReplySize)
	assert.Equal(t, []byte{0x00, 0x02, 0x00, 0x00}, b[2:6])
	assert.Equal(t, []byte{0x00, 0x00, 0x40, 0x01}, b[6:10])
}

func TestWriteReply_Encode(t *testing.T) {
	reply := protocol.WriteReply{
		Header: protocol.Header{Command: protocol.CmdWriteDone, PacketID: 1},
		Result: 0,
	}
	assert.Len(t, reply.Encode(), protocol.WriteReplySize)
}

func TestBlockType_PayloadLen(t *testing.T) {
	tests := []struct {
		shift     uint8
		blockSize int
		perPacket uint16
	}{
		{0, 4, 366},
		{1, 8, 183},
		{2, 16, 91},
		{3, 32, 45},
		{4, 64, 22},
		{5, 128, 11},
		{6, 256, 5},
		{7, 512, 2},
	}

	for _, tt := range tests {
		bt := protocol.BlockType{Shift: tt.shift, Count: tt.perPacket}
		assert.Equal(t, tt.blockSize, bt.BlockSize())
		assert.LessOrEqual(t, bt.PayloadLen(), protocol.RDMAMaxPayload)
		// One more block would not fit.
		bigger := protocol.BlockType{Shift: tt.shift, Count: tt.perPacket + 1}
		assert.Greater(t, bigger.PayloadLen(), protocol.RDMAMaxPayload)
	}
}

func TestRDMA_Roundtrip(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}

	pkt := protocol.RDMA{
		Header: protocol.Header{
			Command:   protocol.CmdReadRdma,
			CommandID: 7,
			PacketID:  2,
		},
		Block: protocol.BlockType{Shift: 5, Count: 1},
		Data:  data,
	}

	b := pkt.Encode()
	require.Len(t, b, protocol.HeaderSize+protocol.BlockTypeSize+len(data))

	decoded, err := protocol.DecodeRDMA(b)
	require.NoError(t, err)
	assert.Equal(t, pkt.Header, decoded.Header)
	assert.Equal(t, pkt.Block, decoded.Block)
	assert.Equal(t, data, decoded.Data)
}

func TestDecodeRDMA_PayloadTooShort(t *testing.T) {
	pkt := protocol.RDMA{
		Header: protocol.Header{Command: protocol.CmdWriteRdma},
		Block:  protocol.BlockType{Shift: 5, Count: 2},
		Data:   make([]byte, 256),
	}
	b := pkt.Encode()

	// Truncate below the announced payload length.
	_, err := protocol.DecodeRDMA(b[:protocol.HeaderSize+protocol.BlockTypeSize+100])
	assert.ErrorIs(t, err, protocol.ErrShortPacket)
}
