// Package server implements the UDPBD server loop: it answers block
// device requests from the network with sectors synthesized by the
// virtual exFAT device.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/udpbd-vexfat/internal/protocol"
	"go.trai.ch/udpbd-vexfat/internal/vexfat"
	"go.trai.ch/zerr"
)

// Server serves one virtual block device over UDPBD.
type Server struct {
	log  ports.Logger
	dev  *vexfat.Device
	conn net.PacketConn

	blockShift      uint8
	blockSize       int
	blocksPerPacket int
	blocksPerSector int

	writeLeft  int
	writeOff   int64
	writeValid bool
}

// New binds the server socket and prepares the device for serving.
// addr is a UDP listen address; use DefaultAddr outside of tests.
func New(log ports.Logger, dev *vexfat.Device, addr string) (*Server, error) {
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create UDP socket")
	}

	s := &Server{
		log:  log,
		dev:  dev,
		conn: conn,
	}
	s.setBlockShift(5) // 128 byte blocks
	return s, nil
}

// DefaultAddr is the canonical UDPBD listen address.
var DefaultAddr = fmt.Sprintf(":%d", protocol.Port)

// Addr returns the bound socket address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run receives and dispatches packets until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info(fmt.Sprintf("server running on %s (port 0x%x)", s.conn.LocalAddr(), protocol.Port))

	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	buf := make([]byte, protocol.MaxPayload)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return zerr.Wrap(err, "failed to receive packet")
		}
		s.dispatch(buf[:n], addr)
	}
}

func (s *Server) dispatch(pkt []byte, addr net.Addr) {
	header, err := protocol.DecodeHeader(pkt)
	if err != nil {
		s.log.Error(err)
		return
	}

	switch header.Command {
	case protocol.CmdInfo:
		s.handleInfo(header, addr)
	case protocol.CmdRead:
		s.handleRead(pkt, addr)
	case protocol.CmdWrite:
		s.handleWrite(pkt)
	case protocol.CmdWriteRdma:
		s.handleWriteRdma(pkt, addr)
	default:
		s.log.Warn(fmt.Sprintf("unexpected command %s from %s", header.Command, addr))
	}
}

func (s *Server) handleInfo(req protocol.Header, addr net.Addr) {
	s.log.Info(fmt.Sprintf("%s from %s", protocol.CmdInfo, addr))

	reply := protocol.InfoReply{
		Header: protocol.Header{
			Command:   protocol.CmdInfoReply,
			CommandID: req.CommandID,
			PacketID:  1,
		},
		SectorSize:  vexfat.SectorSize,
		SectorCount: s.dev.SectorCount(),
	}

	if _, err := s.conn.WriteTo(reply.Encode(), addr); err != nil {
		s.log.Error(zerr.With(zerr.Wrap(err, "failed to send info reply"), "addr", addr.String()))
	}
}

func (s *Server) handleRead(pkt []byte, addr net.Addr) {
	req, err := protocol.DecodeReadWriteRequest(pkt)
	if err != nil {
		s.log.Error(err)
		return
	}
	s.log.Info(fmt.Sprintf("%s(cmdId=%d, startSector=%d, sectorCount=%d)",
		protocol.CmdRead, req.Header.CommandID, req.Sector, req.SectorCount))

	s.setBlockShiftForSectors(req.SectorCount)

	reply := protocol.RDMA{
		Header: protocol.Header{
			Command:   protocol.CmdReadRdma,
			CommandID: req.Header.CommandID,
			PacketID:  1,
		},
		Block: protocol.BlockType{Shift: s.blockShift},
	}

	offset := int64(req.Sector) * vexfat.SectorSize
	data := make([]byte, protocol.RDMAMaxPayload)

	blocksLeft := int(req.SectorCount) * s.blocksPerSector
	for blocksLeft > 0 {
		count := min(blocksLeft, s.blocksPerPacket)
		blocksLeft -= count

		size := count * s.blockSize
		reply.Block.Count = uint16(count)
		reply.Data = data[:size]

		if _, err := s.dev.ReadAt(reply.Data, offset); err != nil {
			s.log.Error(zerr.With(zerr.Wrap(err, "failed to read block device, zeroing"), "offset", offset))
			clear(reply.Data)
		}
		offset += int64(size)

		if _, err := s.conn.WriteTo(reply.Encode(), addr); err != nil {
			s.log.Error(zerr.With(zerr.Wrap(err, "failed to send read rdma"), "addr", addr.String()))
		}
		reply.Header.PacketID++
	}
}

func (s *Server) handleWrite(pkt []byte) {
	req, err := protocol.DecodeReadWriteRequest(pkt)
	if err != nil {
		s.log.Error(err)
		return
	}
	s.log.Info(fmt.Sprintf("%s(cmdId=%d, startSector=%d, sectorCount=%d)",
		protocol.CmdWrite, req.Header.CommandID, req.Sector, req.SectorCount))

	s.writeLeft = int(req.SectorCount) * vexfat.SectorSize
	s.writeOff = int64(req.Sector) * vexfat.SectorSize
	s.writeValid = true
}

func (s *Server) handleWriteRdma(pkt []byte, addr net.Addr) {
	req, err := protocol.DecodeRDMA(pkt)
	if err != nil {
		s.log.Error(err)
		return
	}

	size := req.Block.PayloadLen()
	if s.writeValid {
		if _, err := s.dev.WriteAt(req.Data, s.writeOff); err != nil {
			s.log.Error(zerr.Wrap(err, "failed to write block device"))
		}
		s.writeOff += int64(size)
	}

	if size > s.writeLeft {
		s.log.Warn("write sequence overran announced size")
		s.writeLeft = 0
	} else {
		s.writeLeft -= size
	}

	if s.writeLeft == 0 {
		reply := protocol.WriteReply{
			Header: protocol.Header{
				Command:   protocol.CmdWriteDone,
				CommandID: req.Header.CommandID,
				PacketID:  req.Header.CommandID + 1,
			},
			Result: 0,
		}
		if _, err := s.conn.WriteTo(reply.Encode(), addr); err != nil {
			s.log.Error(zerr.With(zerr.Wrap(err, "failed to send write done"), "addr", addr.String()))
		}
	}
}

// setBlockShift switches the RDMA block geometry.
func (s *Server) setBlockShift(shift uint8) {
	if shift == s.blockShift && s.blockSize != 0 {
		return
	}

	s.blockShift = shift
	s.blockSize = 1 << (shift + 2)
	s.blocksPerPacket = protocol.RDMAMaxPayload / s.blockSize
	s.blocksPerSector = vexfat.SectorSize / s.blockSize
	s.log.Info(fmt.Sprintf("block size changed to %d", s.blockSize))
}

// setBlockShiftForSectors picks the block size for a transfer of the
// given sector count, preferring the fewest packets and then the
// largest blocks (faster on the PS2).
func (s *Server) setBlockShiftForSectors(sectors uint16) {
	size := int(sectors) * vexfat.SectorSize
	packetsMin := ceilDiv(size, 45*32)   // 1440 byte payload
	packets128 := ceilDiv(size, 11*128)  // 1408
	packets256 := ceilDiv(size, 5*256)   // 1280
	packets512 := ceilDiv(size, 2*512)   // 1024

	switch {
	case packets512 == packetsMin:
		s.setBlockShift(7)
	case packets256 == packetsMin:
		s.setBlockShift(6)
	case packets128 == packetsMin:
		s.setBlockShift(5)
	default:
		s.setBlockShift(3)
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
