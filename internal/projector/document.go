// Package projector renders decoded master server replies as JSON documents.
package projector

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"unicode/utf8"

	"github.com/tederis/ase2json/internal/ase"
)

// CountryFunc resolves the ISO country code of a server address.
// It returns an empty string when the country is unknown.
type CountryFunc func(addr netip.Addr) string

// Options control the projection.
type Options struct {
	// Country, when set, adds a country code to every server entry.
	Country CountryFunc

	// Light keeps the summary counters only.
	Light bool
}

// Summary holds the counters present in every document.
type Summary struct {
	// ServersCount is the server count declared by the reply header.
	ServersCount uint32 `json:"serversCount"`

	// PlayersCount is the sum of the per-server player counts.
	PlayersCount uint64 `json:"playersCount"`
}

// Entry is the projection of one server record. Field order is the key order
// of the emitted object.
type Entry struct {
	IP              string   `json:"ip"`
	Port            uint16   `json:"port"`
	PlayersCount    uint16   `json:"playersCount"`
	MaxPlayersCount uint16   `json:"maxPlayersCount"`
	GameName        string   `json:"gameName"`
	ServerName      string   `json:"serverName"`
	ModeName        string   `json:"modeName"`
	MapName         string   `json:"mapName"`
	Version         string   `json:"version"`
	Passworded      bool     `json:"passworded"`
	Players         []string `json:"players"`
	HTTPPort        uint16   `json:"httpPort"`
	Country         string   `json:"country,omitempty"`
}

// Document is the JSON projection of a decoded reply.
type Document struct {
	Servers  []Entry
	Revision ase.Revision
	Summary
	Truncated bool
	Light     bool

	// Lossy counts servers with a name or player name that is not valid
	// UTF-8. The encoder replaces such bytes with U+FFFD. Light documents
	// skip the per-server work and always report zero.
	Lossy int
}

// full fixes the key order of a document with its server list.
type full struct {
	Summary
	Servers []Entry `json:"servers"`
}

// MarshalJSON emits the summary counters, followed by the server list unless
// the document is light.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Light {
		return marshal(d.Summary)
	}

	servers := d.Servers
	if servers == nil {
		servers = []Entry{}
	}

	return marshal(full{Summary: d.Summary, Servers: servers})
}

// marshal is json.Marshal without HTML escaping, so server names keep their
// "<", ">" and "&" characters.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Build projects a decoded reply. Light documents skip the per-server work
// entirely but still carry accurate counters.
func Build(res *ase.Result, opts Options) *Document {
	doc := &Document{
		Summary: Summary{
			ServersCount: res.Declared,
			PlayersCount: res.PlayersCount(),
		},
		Revision:  res.Revision,
		Truncated: res.Truncated,
		Light:     opts.Light,
	}
	if opts.Light {
		return doc
	}

	doc.Servers = make([]Entry, 0, len(res.Servers))
	for i := range res.Servers {
		doc.Servers = append(doc.Servers, newEntry(&res.Servers[i], opts.Country))
		if !validUTF8(&res.Servers[i]) {
			doc.Lossy++
		}
	}

	return doc
}

// validUTF8 reports whether every text attribute of s survives encoding unchanged.
func validUTF8(s *ase.Server) bool {
	for _, v := range []string{s.GameName, s.ServerName, s.ModeName, s.MapName, s.Version} {
		if !utf8.ValidString(v) {
			return false
		}
	}
	for _, name := range s.Players {
		if !utf8.ValidString(name) {
			return false
		}
	}

	return true
}

func newEntry(s *ase.Server, country CountryFunc) Entry {
	players := s.Players
	if players == nil {
		players = []string{}
	}

	e := Entry{
		IP:              s.Addr().String(),
		Port:            s.Port,
		PlayersCount:    s.PlayersCount,
		MaxPlayersCount: s.MaxPlayersCount,
		GameName:        s.GameName,
		ServerName:      s.ServerName,
		ModeName:        s.ModeName,
		MapName:         s.MapName,
		Version:         s.Version,
		Passworded:      s.Passworded,
		Players:         players,
		HTTPPort:        s.HTTPPort,
	}
	if country != nil {
		e.Country = country(s.Addr())
	}

	return e
}

// Lighten returns a light copy of the document sharing its counters.
func (d *Document) Lighten() *Document {
	return &Document{
		Summary:   d.Summary,
		Revision:  d.Revision,
		Truncated: d.Truncated,
		Lossy:     d.Lossy,
		Light:     true,
	}
}
