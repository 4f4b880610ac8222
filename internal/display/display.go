// Package display derives the values the lobby and game room show from
// component snapshots. Every function is pure: the same snapshot always
// produces the same output.
package display

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf16"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// ProfilePicNumber resolves the avatar index of a player. Native pictures are
// numbered by the UTF-16 code of the first character of their URI; anything
// else, including an empty URI, is 0.
func ProfilePicNumber(p model.Player) int {
	if p.ProfilePicType != model.ProfilePicNative || p.ProfilePicURI == "" {
		return 0
	}
	units := utf16.Encode([]rune(p.ProfilePicURI))
	return int(units[0])
}

// PlayerName decodes the felt short string stored in Player.name.
func PlayerName(p model.Player) string {
	return FeltToString(p.Name)
}

// FeltToString decodes a felt short string given in hex or decimal form.
// Values that do not parse render as "".
func FeltToString(felt string) string {
	n, err := ir.ParseFelt(felt)
	if err != nil {
		return ""
	}
	return ir.DecodeShortString(n)
}

// FormatClock renders seconds as m:ss, or h:mm:ss from one hour up.
// Negative values clamp to zero.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatTimestamp renders unix seconds as UTC "2006-01-02 15:04". Zero is "-".
func FormatTimestamp(unix int64) string {
	if unix <= 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// PlayerRow is one line of the players table.
type PlayerRow struct {
	Address          string `json:"address"`
	Name             string `json:"name"`
	ProfilePicType   string `json:"profile_pic_type"`
	ProfilePicNumber int    `json:"profile_pic_number"`
}

// Players builds the players table sorted by address.
func Players(players []model.Player) []PlayerRow {
	rows := make([]PlayerRow, 0, len(players))
	for _, p := range players {
		rows = append(rows, PlayerRow{
			Address:          p.Address,
			Name:             PlayerName(p),
			ProfilePicType:   p.ProfilePicType.String(),
			ProfilePicNumber: ProfilePicNumber(p),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Address < rows[j].Address })
	return rows
}

// indexPlayers keys players by canonical address.
func indexPlayers(players []model.Player) map[string]model.Player {
	idx := make(map[string]model.Player, len(players))
	for _, p := range players {
		idx[ir.NormalizeFelt(p.Address)] = p
	}
	return idx
}
