// internal/models/theme.go
package models

// DefaultTheme is the fallback when an active theme id resolves to neither a
// built-in nor a stored custom theme.
const DefaultTheme = "default"

// ThemeColors 五个固定语义色位
type ThemeColors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Text       string `json:"text"`
	Accent     string `json:"accent"`
}

// CustomTheme 用户自定义主题，跨会话持久化
type CustomTheme struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Colors ThemeColors `json:"colors"`
}

// BuiltinThemes maps the fixed built-in identifiers to their palettes.
// Built-ins are compiled in and never persisted.
var BuiltinThemes = map[string]ThemeColors{
	"default": {
		Primary:    "1E40AF",
		Secondary:  "3B82F6",
		Background: "FFFFFF",
		Text:       "1F2937",
		Accent:     "F59E0B",
	},
	"midnight": {
		Primary:    "E2E8F0",
		Secondary:  "818CF8",
		Background: "0F172A",
		Text:       "CBD5E1",
		Accent:     "F472B6",
	},
	"coral": {
		Primary:    "9F1239",
		Secondary:  "FB7185",
		Background: "FFF1F2",
		Text:       "4C0519",
		Accent:     "0EA5E9",
	},
	"forest": {
		Primary:    "14532D",
		Secondary:  "22C55E",
		Background: "F0FDF4",
		Text:       "052E16",
		Accent:     "EAB308",
	},
	"slate": {
		Primary:    "0F172A",
		Secondary:  "64748B",
		Background: "F8FAFC",
		Text:       "1E293B",
		Accent:     "06B6D4",
	},
}

// IsBuiltinTheme reports whether id names a built-in palette.
func IsBuiltinTheme(id string) bool {
	_, ok := BuiltinThemes[id]
	return ok
}
