package ase

import (
	"fmt"
	"strings"
)

// Flags selects which optional fields are present in every record of an
// extended reply.
type Flags uint32

// Optional record fields of the extended revision.
const (
	FlagPlayerCount          Flags = 0x0004
	FlagMaxPlayerCount       Flags = 0x0008
	FlagGameName             Flags = 0x0010
	FlagServerName           Flags = 0x0020
	FlagGameMode             Flags = 0x0040
	FlagMapName              Flags = 0x0080
	FlagServerVersion        Flags = 0x0100
	FlagPassworded           Flags = 0x0200
	FlagSerials              Flags = 0x0400
	FlagPlayerList           Flags = 0x0800
	FlagResponding           Flags = 0x1000
	FlagRestriction          Flags = 0x2000
	FlagSearchIgnoreSections Flags = 0x4000
	FlagKeepFlag             Flags = 0x8000
	FlagHTTPPort             Flags = 0x080000
	FlagSpecial              Flags = 0x100000

	// FlagsAll is every field known to this decoder.
	FlagsAll = FlagPlayerCount | FlagMaxPlayerCount | FlagGameName | FlagServerName |
		FlagGameMode | FlagMapName | FlagServerVersion | FlagPassworded | FlagSerials |
		FlagPlayerList | FlagResponding | FlagRestriction | FlagSearchIgnoreSections |
		FlagKeepFlag | FlagHTTPPort | FlagSpecial
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// String lists the set field names joined by "|". Unknown bits are printed in hex.
func (fl Flags) String() string {
	if fl == 0 {
		return "none"
	}

	var names []string
	rest := fl
	for _, f := range recordFields {
		if fl.Has(f.flag) {
			names = append(names, f.name)
			rest &^= f.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}

	return strings.Join(names, "|")
}

// recordField is one optional field of an extended record. Fields are
// positional, so recordFields order is the wire order.
type recordField struct {
	decode func(b *Buffer, s *Server) error
	encode func(e *Encoder, s *Server) error
	name   string
	flag   Flags
}

var recordFields = []recordField{
	{
		flag: FlagPlayerCount, name: "playersCount",
		decode: func(b *Buffer, s *Server) (err error) { s.PlayersCount, err = b.ReadUint16(); return },
		encode: func(e *Encoder, s *Server) error { e.writeUint16(s.PlayersCount); return nil },
	},
	{
		flag: FlagMaxPlayerCount, name: "maxPlayersCount",
		decode: func(b *Buffer, s *Server) (err error) { s.MaxPlayersCount, err = b.ReadUint16(); return },
		encode: func(e *Encoder, s *Server) error { e.writeUint16(s.MaxPlayersCount); return nil },
	},
	{
		flag: FlagGameName, name: "gameName",
		decode: func(b *Buffer, s *Server) (err error) { s.GameName, err = b.ReadString(); return },
		encode: func(e *Encoder, s *Server) error { return e.writeString(s.GameName) },
	},
	{
		flag: FlagServerName, name: "serverName",
		decode: func(b *Buffer, s *Server) (err error) { s.ServerName, err = b.ReadString(); return },
		encode: func(e *Encoder, s *Server) error { return e.writeString(s.ServerName) },
	},
	{
		flag: FlagGameMode, name: "modeName",
		decode: func(b *Buffer, s *Server) (err error) { s.ModeName, err = b.ReadString(); return },
		encode: func(e *Encoder, s *Server) error { return e.writeString(s.ModeName) },
	},
	{
		flag: FlagMapName, name: "mapName",
		decode: func(b *Buffer, s *Server) (err error) { s.MapName, err = b.ReadString(); return },
		encode: func(e *Encoder, s *Server) error { return e.writeString(s.MapName) },
	},
	{
		flag: FlagServerVersion, name: "version",
		decode: func(b *Buffer, s *Server) (err error) { s.Version, err = b.ReadString(); return },
		encode: func(e *Encoder, s *Server) error { return e.writeString(s.Version) },
	},
	{
		flag: FlagPassworded, name: "passworded",
		decode: func(b *Buffer, s *Server) error {
			v, err := b.ReadUint8()
			s.Passworded = v != 0
			return err
		},
		encode: func(e *Encoder, s *Server) error { e.writeBool(s.Passworded); return nil },
	},
	{
		flag: FlagSerials, name: "serials",
		decode: discardUint8,
		encode: zeroUint8,
	},
	{
		flag: FlagPlayerList, name: "players",
		decode: decodePlayers,
		encode: func(e *Encoder, s *Server) error { return e.writePlayers(s.Players) },
	},
	{
		flag: FlagResponding, name: "responding",
		decode: discardUint8,
		encode: zeroUint8,
	},
	{
		flag: FlagRestriction, name: "restriction",
		decode: func(b *Buffer, _ *Server) error { _, err := b.ReadUint32(); return err },
		encode: func(e *Encoder, _ *Server) error { e.writeUint32(0); return nil },
	},
	{
		flag: FlagSearchIgnoreSections, name: "searchIgnoreSections",
		decode: skipIgnoreSections,
		encode: zeroUint8,
	},
	{
		flag: FlagKeepFlag, name: "keepFlag",
		decode: discardUint8,
		encode: zeroUint8,
	},
	{
		flag: FlagHTTPPort, name: "httpPort",
		decode: func(b *Buffer, s *Server) (err error) { s.HTTPPort, err = b.ReadUint16(); return },
		encode: func(e *Encoder, s *Server) error { e.writeUint16(s.HTTPPort); return nil },
	},
	{
		flag: FlagSpecial, name: "special",
		decode: discardUint8,
		encode: zeroUint8,
	},
}

// Markers that are parsed but not retained in the record.

func discardUint8(b *Buffer, _ *Server) error {
	_, err := b.ReadUint8()
	return err
}

func zeroUint8(e *Encoder, _ *Server) error {
	e.writeUint8(0)
	return nil
}

// decodePlayers reads a 16-bit name count followed by that many names. It
// stops at the first name that cannot be read.
func decodePlayers(b *Buffer, s *Server) error {
	n, err := b.ReadUint16()
	if err != nil {
		return err
	}

	s.Players = make([]string, 0, min(int(n), b.Remaining()))
	for i := 0; i < int(n); i++ {
		name, err := b.ReadString()
		if err != nil {
			return err
		}
		s.Players = append(s.Players, name)
	}

	return nil
}

// skipIgnoreSections reads an item count and skips two bytes per item.
func skipIgnoreSections(b *Buffer, _ *Server) error {
	n, err := b.ReadUint8()
	if err != nil {
		return err
	}

	start := b.Tell()
	if !b.Skip(2 * int(n)) {
		return &ShortReadError{Offset: start, Want: 2 * int(n), Have: b.Remaining()}
	}

	return nil
}
