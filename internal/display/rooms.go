package display

import (
	"sort"

	"github.com/roach88/rlchess/internal/model"
)

// OpenRoom is one line of the open rooms table.
type OpenRoom struct {
	GameID           int64  `json:"game_id"`
	OwnerAddress     string `json:"owner_address"`
	OwnerName        string `json:"owner_name"`
	ProfilePicNumber int    `json:"profile_pic_number"`
	Format           string `json:"format"`
	TotalTime        string `json:"total_time"`
	RoomStart        string `json:"room_start"`
}

// OpenRooms lists games still awaiting an opponent, sorted by game id.
func OpenRooms(games []model.Game, players []model.Player, formats Formats) []OpenRoom {
	byAddr := indexPlayers(players)

	rooms := make([]OpenRoom, 0, len(games))
	for _, g := range games {
		if g.InviteState != model.InviteAwaiting {
			continue
		}
		owner := byAddr[g.RoomOwner]
		f := formats.Lookup(g.GameFormatID)
		rooms = append(rooms, OpenRoom{
			GameID:           g.GameID,
			OwnerAddress:     g.RoomOwner,
			OwnerName:        PlayerName(owner),
			ProfilePicNumber: ProfilePicNumber(owner),
			Format:           f.Description,
			TotalTime:        TotalTimeString(f),
			RoomStart:        FormatTimestamp(g.RoomStart),
		})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].GameID < rooms[j].GameID })
	return rooms
}

// Seat is one side of a game room.
type Seat struct {
	Address          string `json:"address"`
	Name             string `json:"name"`
	ProfilePicNumber int    `json:"profile_pic_number"`
	Color            string `json:"color"`
	Clock            string `json:"clock"`
	SecondsLeft      int64  `json:"seconds_left"`
}

// Room is the game room view.
type Room struct {
	GameID      int64  `json:"game_id"`
	InviteState string `json:"invite_state"`
	Format      string `json:"format"`
	Started     bool   `json:"started"`
	Owner       Seat   `json:"owner"`
	Opponent    *Seat  `json:"opponent,omitempty"`
}

// BuildRoom assembles the room view. state may be nil before start_game; the
// owner then defaults to white and clocks show the format's total time.
func BuildRoom(g model.Game, state *model.GameState, players []model.Player, formats Formats) Room {
	byAddr := indexPlayers(players)
	f := formats.Lookup(g.GameFormatID)

	ownerWhite := true
	whiteLeft, blackLeft := f.TotalTime, f.TotalTime
	if state != nil {
		ownerWhite = state.OwnerIsWhite()
		whiteLeft, blackLeft = state.WhiteTimeLeft, state.BlackTimeLeft
	}

	ownerSecs, oppSecs := whiteLeft, blackLeft
	ownerColor, oppColor := model.ColorWhite, model.ColorBlack
	if !ownerWhite {
		ownerSecs, oppSecs = blackLeft, whiteLeft
		ownerColor, oppColor = model.ColorBlack, model.ColorWhite
	}

	room := Room{
		GameID:      g.GameID,
		InviteState: g.InviteState.String(),
		Format:      f.Description,
		Started:     state != nil,
		Owner:       seat(g.RoomOwner, byAddr, ownerColor, ownerSecs),
	}
	if g.HasOpponent() {
		opp := seat(g.Invitee, byAddr, oppColor, oppSecs)
		room.Opponent = &opp
	}
	return room
}

func seat(addr string, byAddr map[string]model.Player, c model.Color, secs int64) Seat {
	p := byAddr[addr]
	return Seat{
		Address:          addr,
		Name:             PlayerName(p),
		ProfilePicNumber: ProfilePicNumber(p),
		Color:            c.String(),
		Clock:            FormatClock(secs),
		SecondsLeft:      secs,
	}
}
