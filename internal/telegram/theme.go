package telegram

import (
	"fmt"
	"strconv"
)

// ThemeParams are the raw colors the Telegram host hands the Mini App.
// Any field may be empty.
type ThemeParams struct {
	BGColor          string `json:"bg_color,omitempty"`
	TextColor        string `json:"text_color,omitempty"`
	HintColor        string `json:"hint_color,omitempty"`
	LinkColor        string `json:"link_color,omitempty"`
	ButtonColor      string `json:"button_color,omitempty"`
	ButtonTextColor  string `json:"button_text_color,omitempty"`
	SecondaryBGColor string `json:"secondary_bg_color,omitempty"`
	HeaderBGColor    string `json:"header_bg_color,omitempty"`
}

// Theme is a fully resolved palette with every slot filled
type Theme struct {
	BGColor          string `json:"bg_color"`
	TextColor        string `json:"text_color"`
	HintColor        string `json:"hint_color"`
	LinkColor        string `json:"link_color"`
	ButtonColor      string `json:"button_color"`
	ButtonTextColor  string `json:"button_text_color"`
	SecondaryBGColor string `json:"secondary_bg_color"`
	HeaderBGColor    string `json:"header_bg_color"`
	Dark             bool   `json:"dark"`
}

// LightTheme is the palette used when the host is absent
func LightTheme() Theme {
	return Theme{
		BGColor:          "#ffffff",
		TextColor:        "#000000",
		HintColor:        "#999999",
		LinkColor:        "#007AFF",
		ButtonColor:      "#007AFF",
		ButtonTextColor:  "#ffffff",
		SecondaryBGColor: "#f5f5f5",
		HeaderBGColor:    "#ffffff",
		Dark:             false,
	}
}

// DarkTheme is the dark fallback palette
func DarkTheme() Theme {
	return Theme{
		BGColor:          "#17212b",
		TextColor:        "#ffffff",
		HintColor:        "#708499",
		LinkColor:        "#6ab7ff",
		ButtonColor:      "#5288c1",
		ButtonTextColor:  "#ffffff",
		SecondaryBGColor: "#232e3c",
		HeaderBGColor:    "#17212b",
		Dark:             true,
	}
}

// Resolve fills the gaps in host-provided theme params. Missing colors fall
// back to the light defaults, except the secondary background, which is
// derived by lightening a dark background.
func (p *ThemeParams) Resolve() Theme {
	if p == nil {
		return LightTheme()
	}

	dark := isDarkColor(p.BGColor)

	theme := Theme{
		BGColor:          fallback(p.BGColor, "#ffffff"),
		TextColor:        fallback(p.TextColor, "#000000"),
		HintColor:        fallback(p.HintColor, "#999999"),
		LinkColor:        fallback(p.LinkColor, "#007AFF"),
		ButtonColor:      fallback(p.ButtonColor, "#007AFF"),
		ButtonTextColor:  fallback(p.ButtonTextColor, "#ffffff"),
		SecondaryBGColor: p.SecondaryBGColor,
		Dark:             dark,
	}

	if theme.SecondaryBGColor == "" {
		if dark {
			theme.SecondaryBGColor = lightenColor(p.BGColor, 0.1)
		} else {
			theme.SecondaryBGColor = "#f5f5f5"
		}
	}

	theme.HeaderBGColor = fallback(p.HeaderBGColor, theme.BGColor)
	return theme
}

func fallback(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// isDarkColor applies the perceived-brightness formula to a #rrggbb color
func isDarkColor(color string) bool {
	r, g, b, err := parseHexColor(color)
	if err != nil {
		return false
	}
	brightness := (r*299 + g*587 + b*114) / 1000
	return brightness < 128
}

// lightenColor shifts a #rrggbb color towards white by factor
func lightenColor(color string, factor float64) string {
	r, g, b, err := parseHexColor(color)
	if err != nil {
		return "#f0f0f0"
	}

	shift := int(255 * factor)
	r = min(255, r+shift)
	g = min(255, g+shift)
	b = min(255, b+shift)

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func parseHexColor(color string) (r, g, b int, err error) {
	if len(color) != 7 || color[0] != '#' {
		return 0, 0, 0, fmt.Errorf("not a #rrggbb color: %q", color)
	}

	value, err := strconv.ParseUint(color[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("not a #rrggbb color: %q", color)
	}

	return int(value >> 16), int(value >> 8 & 0xff), int(value & 0xff), nil
}
