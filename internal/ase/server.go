package ase

import (
	"encoding/binary"
	"net/netip"
)

// Server is one decoded record of a master server reply. Attributes whose
// field is absent from the reply keep their zero value.
type Server struct {
	GameName        string
	ServerName      string
	ModeName        string
	MapName         string
	Version         string
	Players         []string
	IP              [4]byte
	Port            uint16
	PlayersCount    uint16
	MaxPlayersCount uint16
	HTTPPort        uint16
	Passworded      bool
}

// Addr returns the server address.
func (s *Server) Addr() netip.Addr {
	return netip.AddrFrom4(s.IP)
}

// AddrPort returns the server address with its game port.
func (s *Server) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(s.Addr(), s.Port)
}

// readAddr reads the 32-bit address and keeps its octets most significant first.
func (s *Server) readAddr(b *Buffer) error {
	v, err := b.ReadUint32()
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(s.IP[:], v)

	return nil
}

// Result is a decoded reply.
type Result struct {
	Servers  []Server
	Revision Revision
	Flags    Flags
	Sequence uint32

	// Declared is the server count announced by the reply header. It may be
	// larger than len(Servers) when the reply is cut short.
	Declared uint32

	// Truncated is set when at least one read ran past the end of the reply.
	Truncated bool
}

// PlayersCount sums the player count field over all decoded records.
func (r *Result) PlayersCount() uint64 {
	var total uint64
	for i := range r.Servers {
		total += uint64(r.Servers[i].PlayersCount)
	}

	return total
}
