package utils

import (
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// Theme holds the colors used when rendering a conversation. Values are
// anything lipgloss accepts as a color: hex codes ("#5f87af") or ANSI
// numbers ("12").
//
// This file is loaded from <config-dir>/theme.json on startup. Keep this
// config stable; new fields should be appended with defaults.
type Theme struct {
	Agent   string `json:"agent"`
	Human   string `json:"human"`
	Tool    string `json:"tool"`
	Warning string `json:"warning"`
	Error   string `json:"error"`
	Subtle  string `json:"subtle"`
}

func DefaultTheme() Theme {
	return Theme{
		Agent:   "#5f87af",
		Human:   "#00afaf",
		Tool:    "#af5faf",
		Warning: "#d7af00",
		Error:   "#d75f5f",
		Subtle:  "#8a8a8a",
	}
}

// LoadTheme loads (and possibly creates) the theme.json file within the
// config dir.
func LoadTheme(configDirPath string) (Theme, error) {
	dflt := DefaultTheme()
	conf, err := LoadConfigFromFile(configDirPath, "theme.json", &dflt)
	if err != nil {
		return dflt, fmt.Errorf("failed to load theme config: %w", err)
	}
	return conf, nil
}

// NoColor reports whether color output should be disabled.
func NoColor() bool {
	return misc.Truthy(os.Getenv("NO_COLOR"))
}
