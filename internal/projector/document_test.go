package projector

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tederis/ase2json/internal/ase"
)

func decode(t *testing.T, data []byte) *ase.Result {
	t.Helper()

	res, err := ase.Decode(data, ase.Options{Strict: true})
	require.NoError(t, err)

	return res
}

func TestQuotedServerNameRoundTrip(t *testing.T) {
	data, err := ase.EncodeExtended(ase.FlagGameName|ase.FlagServerName|ase.FlagPassworded, 0, []ase.Server{{
		IP:         [4]byte{127, 0, 0, 1},
		Port:       22003,
		GameName:   "race",
		ServerName: `Best "race" server`,
		Passworded: true,
	}})
	require.NoError(t, err)

	out, err := Encode(Build(decode(t, data), Options{}))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `"passworded": true`)
	assert.Contains(t, text, `"serverName": "Best \"race\" server"`)
	assert.Contains(t, text, `"ip": "127.0.0.1"`)
	assert.Contains(t, text, `"port": 22003`)
	assert.Contains(t, text, `"gameName": "race"`)
	assert.Contains(t, text, `"players": []`)
	assert.True(t, json.Valid(out))
}

func TestZeroServerDocument(t *testing.T) {
	data := []byte{0, 0, 0, 2, 0, 0, 0, 0x30, 0, 0, 0, 1, 0, 0, 0, 0}

	out, err := Encode(Build(decode(t, data), Options{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"serversCount": 0, "playersCount": 0, "servers": []}`, string(out))
}

func TestUnknownRevisionDocument(t *testing.T) {
	res, err := ase.Decode([]byte{0, 0, 0, 99, 1, 2, 3}, ase.Options{})
	require.NoError(t, err)

	out, err := Encode(Build(res, Options{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"serversCount": 0, "playersCount": 0, "servers": []}`, string(out))
}

func TestKeyOrder(t *testing.T) {
	data, err := ase.EncodeExtended(ase.FlagsAll, 0, []ase.Server{{IP: [4]byte{1, 2, 3, 4}, Port: 1}})
	require.NoError(t, err)

	out, err := Encode(Build(decode(t, data), Options{}))
	require.NoError(t, err)

	keys := []string{
		`"serversCount"`, `"playersCount"`, `"servers"`, `"ip"`, `"port"`, `"playersCount"`,
		`"maxPlayersCount"`, `"gameName"`, `"serverName"`, `"modeName"`, `"mapName"`,
		`"version"`, `"passworded"`, `"players"`, `"httpPort"`,
	}
	text := string(out)
	pos := 0
	for _, key := range keys {
		i := strings.Index(text[pos:], key)
		require.GreaterOrEqual(t, i, 0, "key %s missing or out of order", key)
		pos += i + len(key)
	}
	assert.NotContains(t, text, `"country"`)
}

func TestLightDocument(t *testing.T) {
	flags := ase.FlagPlayerCount | ase.FlagServerName
	data, err := ase.EncodeExtended(flags, 0, []ase.Server{
		{IP: [4]byte{1, 1, 1, 1}, Port: 1, PlayersCount: 4, ServerName: "a"},
		{IP: [4]byte{2, 2, 2, 2}, Port: 2, PlayersCount: 6, ServerName: "b"},
	})
	require.NoError(t, err)

	doc := Build(decode(t, data), Options{Light: true})
	assert.Nil(t, doc.Servers)

	out, err := Encode(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"serversCount": 2, "playersCount": 10}`, string(out))
	assert.NotContains(t, string(out), "servers\"")

	full := Build(decode(t, data), Options{})
	light, err := Encode(full.Lighten())
	require.NoError(t, err)
	assert.Equal(t, string(out), string(light))
}

func TestPlayersCountSkipsMissingField(t *testing.T) {
	servers := []ase.Server{
		{IP: [4]byte{1, 1, 1, 1}, PlayersCount: 5},
		{IP: [4]byte{2, 2, 2, 2}, PlayersCount: 7},
	}

	with, err := ase.EncodeExtended(ase.FlagPlayerCount, 0, servers)
	require.NoError(t, err)
	without, err := ase.EncodeExtended(ase.FlagMapName, 0, servers)
	require.NoError(t, err)

	assert.Equal(t, uint64(12), Build(decode(t, with), Options{}).PlayersCount)
	assert.Equal(t, uint64(0), Build(decode(t, without), Options{}).PlayersCount)
}

func TestDeclaredCountIsReported(t *testing.T) {
	var e ase.Encoder
	e.WriteHeader(0, 0, 5)
	s := ase.Server{IP: [4]byte{9, 9, 9, 9}, Port: 9}
	require.NoError(t, e.WriteRecord(0, &s, 0))

	res, err := ase.Decode(e.Bytes(), ase.Options{})
	require.NoError(t, err)

	doc := Build(res, Options{})
	assert.Equal(t, uint32(5), doc.ServersCount)
	assert.Len(t, doc.Servers, 1)
	assert.True(t, doc.Truncated)
}

func TestCountryEnrichment(t *testing.T) {
	data, err := ase.EncodeLegacy([]ase.Server{{IP: [4]byte{8, 8, 8, 8}, Port: 53}})
	require.NoError(t, err)

	country := func(addr netip.Addr) string {
		if addr == netip.MustParseAddr("8.8.8.8") {
			return "US"
		}
		return ""
	}

	out, err := Encode(Build(decode(t, data), Options{Country: country}))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"country": "US"`)
}

func TestHostileNamesStayValidJSON(t *testing.T) {
	check := func(name string, player string) bool {
		if len(name) > 255 || len(player) > 255 {
			return true
		}

		data, err := ase.EncodeExtended(ase.FlagServerName|ase.FlagPlayerList, 0, []ase.Server{{
			ServerName: name,
			Players:    []string{player},
		}})
		if err != nil {
			return false
		}
		res, err := ase.Decode(data, ase.Options{Strict: true})
		if err != nil {
			return false
		}
		out, err := Encode(Build(res, Options{}))
		if err != nil || !json.Valid(out) {
			return false
		}

		var back struct {
			Servers []Entry `json:"servers"`
		}
		if err := json.Unmarshal(out, &back); err != nil || len(back.Servers) != 1 {
			return false
		}
		if utf8.ValidString(name) && back.Servers[0].ServerName != name {
			return false
		}
		if utf8.ValidString(player) && back.Servers[0].Players[0] != player {
			return false
		}

		return true
	}

	require.NoError(t, quick.Check(check, &quick.Config{MaxCount: 500}))

	for _, name := range []string{"back\\slash", "new\nline", "tab\t", "\x00\x01\x1f", "\"", "<b>&amp;</b>", "\xff\xfe"} {
		assert.True(t, check(name, name), "name %q", name)
	}
}

func TestInvalidUTF8NamesAreCounted(t *testing.T) {
	data, err := ase.EncodeExtended(ase.FlagServerName|ase.FlagPlayerList, 0, []ase.Server{
		{ServerName: "Caf\xe9 \xa9"},
		{ServerName: "clean", Players: []string{"ok", "\xff"}},
		{ServerName: "Café"},
	})
	require.NoError(t, err)

	doc := Build(decode(t, data), Options{})
	assert.Equal(t, 2, doc.Lossy)
	assert.Equal(t, 2, doc.Lighten().Lossy)

	out, err := Encode(doc)
	require.NoError(t, err)
	assert.True(t, json.Valid(out))
	assert.Contains(t, string(out), `"serverName": "Caf\ufffd \ufffd"`)
	assert.Contains(t, string(out), `"serverName": "Café"`)

	assert.Zero(t, Build(decode(t, data), Options{Light: true}).Lossy)
}

func TestWriteTable(t *testing.T) {
	data, err := ase.EncodeExtended(ase.FlagsAll, 0, []ase.Server{{
		IP: [4]byte{127, 0, 0, 1}, Port: 22003, ServerName: "Local", ModeName: "race",
		MapName: "dust", PlayersCount: 3, MaxPlayersCount: 32, Passworded: true,
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Build(decode(t, data), Options{})))
	out := buf.String()
	assert.Contains(t, out, "127.0.0.1:22003")
	assert.Contains(t, out, "3/32")
	assert.Contains(t, out, "1 servers, 3 players")

	buf.Reset()
	require.NoError(t, WriteTable(&buf, Build(decode(t, data), Options{Light: true})))
	assert.Equal(t, "1 servers, 3 players\n", buf.String())
}

func TestDigestStable(t *testing.T) {
	a := Digest([]byte(`{"serversCount":0}`))
	assert.Equal(t, a, Digest([]byte(`{"serversCount":0}`)))
	assert.NotEqual(t, a, Digest([]byte(`{"serversCount":1}`)))
}
