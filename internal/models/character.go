package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Character is one entry of an account roster as returned by the open API.
type Character struct {
	Name         string `json:"CharacterName"`
	ServerName   string `json:"ServerName"`
	ClassName    string `json:"CharacterClassName"`
	ItemAvgLevel string `json:"ItemAvgLevel"`
}

// ItemLevel parses the comma-grouped level string ("1,700.00").
func (c Character) ItemLevel() (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(c.ItemAvgLevel), ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item level %q: %w", c.ItemAvgLevel, err)
	}
	return v, nil
}

func FilterByServer(roster []Character, server string) []Character {
	out := make([]Character, 0, len(roster))
	for _, c := range roster {
		if c.ServerName == server {
			out = append(out, c)
		}
	}
	return out
}

// MaxItemLevel returns the highest parseable item level; ok is false when none parse.
func MaxItemLevel(roster []Character) (best float64, ok bool) {
	for _, c := range roster {
		lvl, err := c.ItemLevel()
		if err != nil {
			continue
		}
		if !ok || lvl > best {
			best = lvl
			ok = true
		}
	}
	return best, ok
}

func CharacterNames(roster []Character) []string {
	names := make([]string, 0, len(roster))
	for _, c := range roster {
		names = append(names, c.Name)
	}
	return names
}

func FindCharacter(roster []Character, name string) (Character, bool) {
	for _, c := range roster {
		if c.Name == name {
			return c, true
		}
	}
	return Character{}, false
}
