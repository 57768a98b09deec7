// Package fake generates synthetic master server replies for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/tederis/ase2json/internal/ase"
)

var (
	modes    = []string{"Race", "Freeroam", "DM", "Stealth", "Roleplay", "DD", "CTF"}
	maps     = []string{"race-dust", "fr-lv", "dm-arena", "stealth-warehouse", "rp-city", "dd-sky", ""}
	versions = []string{"1.6", "1.6n", "1.6.0-9.22953", "1.5.9"}
	prefixes = []string{"[EN]", "[PL]", "[BR]", "[RU]", "[DE]", "#1", ""}
	nicks    = []string{"Sam", "Nitro", "Ghost", "Ace", "Dex", "Kira", "Rook", "Vex", "Moss", "Jin"}
)

// Servers returns count randomized MTA-like server records.
func Servers(count int, rnd *rand.Rand) []ase.Server {
	servers := make([]ase.Server, 0, count)

	for i := 0; i < count; i++ {
		maxPlayers := uint16(16 << rnd.Intn(5))
		players := make([]string, rnd.Intn(int(maxPlayers)/2+1))
		for j := range players {
			players[j] = fmt.Sprintf("%s%d", nicks[rnd.Intn(len(nicks))], rnd.Intn(1000))
		}

		mode := modes[rnd.Intn(len(modes))]
		servers = append(servers, ase.Server{
			IP:              [4]byte{byte(rnd.Intn(220) + 1), byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256))},
			Port:            uint16(22003 + rnd.Intn(100)),
			PlayersCount:    uint16(len(players)),
			MaxPlayersCount: maxPlayers,
			GameName:        "mta",
			ServerName:      strings.TrimSpace(fmt.Sprintf("%s %s Server #%d", prefixes[rnd.Intn(len(prefixes))], mode, rnd.Intn(1000))),
			ModeName:        mode,
			MapName:         maps[rnd.Intn(len(maps))],
			Version:         versions[rnd.Intn(len(versions))],
			Passworded:      rnd.Float32() < 0.1,
			Players:         players,
			HTTPPort:        uint16(22005 + rnd.Intn(100)),
		})
	}

	return servers
}

// Reply encodes count random servers as an extended reply carrying every known field.
func Reply(count int, rnd *rand.Rand) ([]byte, error) {
	servers := Servers(count, rnd)
	return ase.EncodeExtended(ase.FlagsAll, uint32(rnd.Int31()), servers)
}
