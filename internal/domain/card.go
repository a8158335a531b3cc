package domain

import (
	"fmt"
	"strings"
)

// Game identifies which card database a search runs against
type Game string

const (
	GameMagic   Game = "magic"
	GamePokemon Game = "pokemon"
	GameLorcana Game = "lorcana"
	GameOPTCG   Game = "optcg"
)

// Games lists every supported game in display order
var Games = []Game{GameMagic, GamePokemon, GameLorcana, GameOPTCG}

// ParseGame converts a user supplied game name to a Game
func ParseGame(s string) (Game, error) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Games {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGame, s)
}

// Default values applied to optional CSV columns
const (
	DefaultCondition = "Near Mint"
	DefaultLanguage  = "English"
	DefaultQuantity  = 1
)

// ParsedCard is one CSV row mapped onto the canonical fields.
// Name is always non-empty; rows without a name never become a ParsedCard.
type ParsedCard struct {
	Name            string `json:"name"`
	Quantity        int    `json:"quantity"`
	SetName         string `json:"set_name,omitempty"`
	Set             string `json:"set,omitempty"`
	CollectorNumber string `json:"collector_number,omitempty"`
	Condition       string `json:"condition"`
	Language        string `json:"language"`
	IsFoil          bool   `json:"is_foil"`
	Rarity          string `json:"rarity,omitempty"`
	OriginalPrice   string `json:"original_price,omitempty"`
}

// ImageURIs holds the image variants returned by the card search service
type ImageURIs struct {
	Small  string `json:"small,omitempty"`
	Normal string `json:"normal,omitempty"`
	Large  string `json:"large,omitempty"`
}

// Prices is a price snapshot; a nil field means the service has no price for it
type Prices struct {
	USD     *float64 `json:"usd"`
	USDFoil *float64 `json:"usd_foil"`
	EUR     *float64 `json:"eur"`
	EURFoil *float64 `json:"eur_foil"`
}

// HasAny reports whether at least one price is present
func (p Prices) HasAny() bool {
	return p.USD != nil || p.USDFoil != nil || p.EUR != nil || p.EURFoil != nil
}

// CardResult is the authoritative record for a card as returned by the search service
type CardResult struct {
	ID              string    `json:"id"`
	APIID           string    `json:"api_id"`
	Name            string    `json:"name"`
	SetName         string    `json:"set_name"`
	SetCode         string    `json:"set_code,omitempty"`
	CollectorNumber string    `json:"collector_number"`
	Rarity          string    `json:"rarity,omitempty"`
	Game            Game      `json:"game"`
	ImageURIs       ImageURIs `json:"image_uris"`
	Prices          Prices    `json:"prices"`
}

// SearchResponse is the envelope returned by the card search service
type SearchResponse struct {
	Success bool         `json:"success"`
	Data    []CardResult `json:"data"`
	Error   string       `json:"error,omitempty"`
}

// Found reports whether the response carries at least one candidate.
// An unsuccessful response counts as no match.
func (r *SearchResponse) Found() bool {
	return r != nil && r.Success && len(r.Data) > 0
}
