package models

// MatchSize is the fixed roster size a matchmaking queue fills.
const MatchSize = 5

// hardPlayerLimits maps each supported game to its hard lobby cap.
// Lobbies may be configured smaller, never larger.
var hardPlayerLimits = map[string]int{
	"CS2":           5,
	"Valorant":      5,
	"LeagueArena":   5,
	"RocketLeague":  3,
	"StreetFighter": 2,
}

// HardPlayerLimit returns the maximum lobby size for a game. Unknown games
// get the matchmaking size so hosted lobbies for new titles still work.
func HardPlayerLimit(game string) int {
	if limit, ok := hardPlayerLimits[game]; ok {
		return limit
	}
	return MatchSize
}

// ClampLobbySize bounds a requested lobby capacity to [2, hard limit].
// Zero or negative requests get the game's hard limit.
func ClampLobbySize(game string, requested int) int {
	limit := HardPlayerLimit(game)
	if requested <= 0 || requested > limit {
		return limit
	}
	if requested < 2 {
		return 2
	}
	return requested
}
