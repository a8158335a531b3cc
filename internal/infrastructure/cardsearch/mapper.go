package cardsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tcgvault/backend/internal/domain"
)

// searchEnvelope is the wire body of GET /cards/search
type searchEnvelope struct {
	Success bool       `json:"success"`
	Data    []wireCard `json:"data"`
	Error   string     `json:"error"`
}

// wireCard accepts both the search service's own field names and the
// Scryfall-style names it passes through for some games
type wireCard struct {
	ID              string            `json:"id"`
	APIID           string            `json:"api_id"`
	Name            string            `json:"name"`
	SetName         string            `json:"set_name"`
	Set             string            `json:"set"`
	SetCode         string            `json:"set_code"`
	CollectorNumber flexString        `json:"collector_number"`
	Number          flexString        `json:"number"`
	Rarity          string            `json:"rarity"`
	Game            string            `json:"game"`
	ImageURIs       map[string]string `json:"image_uris"`
	Images          map[string]string `json:"images"`
	Prices          wirePrices        `json:"prices"`
}

type wirePrices struct {
	USD     flexFloat `json:"usd"`
	USDFoil flexFloat `json:"usd_foil"`
	EUR     flexFloat `json:"eur"`
	EURFoil flexFloat `json:"eur_foil"`
}

// flexFloat decodes a JSON number, a numeric string or null.
// Empty and non-numeric strings decode to null.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.Value = nil
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		f.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.Value = nil
		return nil
	}
	f.Value = &v
	return nil
}

// flexString decodes either a JSON string or a number as a string
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("collector number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// mapToSearchResponse converts the wire envelope to the domain response
func mapToSearchResponse(env *searchEnvelope, game domain.Game) *domain.SearchResponse {
	resp := &domain.SearchResponse{
		Success: env.Success,
		Error:   env.Error,
		Data:    make([]domain.CardResult, 0, len(env.Data)),
	}
	for _, c := range env.Data {
		resp.Data = append(resp.Data, mapCard(c, game))
	}
	return resp
}

// mapCard converts one wire card, filling the game when the service omits it
func mapCard(c wireCard, game domain.Game) domain.CardResult {
	apiID := c.APIID
	if apiID == "" {
		apiID = c.ID
	}

	setCode := c.SetCode
	if setCode == "" {
		setCode = c.Set
	}

	number := string(c.CollectorNumber)
	if number == "" {
		number = string(c.Number)
	}

	g := domain.Game(strings.ToLower(c.Game))
	if g == "" {
		g = game
	}

	images := c.ImageURIs
	if len(images) == 0 {
		images = c.Images
	}

	return domain.CardResult{
		ID:              c.ID,
		APIID:           apiID,
		Name:            c.Name,
		SetName:         c.SetName,
		SetCode:         setCode,
		CollectorNumber: number,
		Rarity:          c.Rarity,
		Game:            g,
		ImageURIs:       mapImages(images),
		Prices: domain.Prices{
			USD:     c.Prices.USD.Value,
			USDFoil: c.Prices.USDFoil.Value,
			EUR:     c.Prices.EUR.Value,
			EURFoil: c.Prices.EURFoil.Value,
		},
	}
}

// mapImages picks small/normal/large, accepting pokemontcg-style "small"/"large" only
func mapImages(m map[string]string) domain.ImageURIs {
	img := domain.ImageURIs{
		Small:  m["small"],
		Normal: m["normal"],
		Large:  m["large"],
	}
	if img.Normal == "" {
		img.Normal = firstNonEmpty(m["large"], m["small"], m["png"])
	}
	if img.Large == "" {
		img.Large = firstNonEmpty(m["png"], m["normal"])
	}
	return img
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
