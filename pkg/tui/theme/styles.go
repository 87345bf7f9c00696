package theme

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// Warm earth-tone palette
var (
	ColorBase00 = lipgloss.Color("#1a1816") // Dark background
	ColorBase01 = lipgloss.Color("#282420") // Lighter background
	ColorBase02 = lipgloss.Color("#36302a") // Selection background
	ColorBase03 = lipgloss.Color("#5c5044") // Comments, invisibles
	ColorBase05 = lipgloss.Color("#ab937b") // Default foreground
	ColorBase07 = lipgloss.Color("#f5d7b9") // Lightest foreground

	ColorRed    = lipgloss.Color("#d95f5f")
	ColorOrange = lipgloss.Color("#eb8755")
	ColorYellow = lipgloss.Color("#f5b761")
	ColorGreen  = lipgloss.Color("#93b56b")
	ColorCyan   = lipgloss.Color("#61afaf")
	ColorBlue   = lipgloss.Color("#6b93b5")
	ColorPurple = lipgloss.Color("#976bb5")
	ColorBrown  = lipgloss.Color("#b57f6b")

	ColorBorder    = ColorBase03
	ColorSelection = ColorBase02
	ColorFocus     = ColorOrange
	ColorSuccess   = ColorGreen
	ColorWarning   = ColorYellow
	ColorError     = ColorRed
	ColorInfo      = ColorCyan
	ColorMuted     = ColorBase03
)

// senderColors are assigned to members by id so a sender keeps one color
var senderColors = []lipgloss.Color{ColorBlue, ColorPurple, ColorBrown, ColorCyan, ColorYellow, ColorGreen}

// Styles defines the Lipgloss styles for huddle's views
type Styles struct {
	// Layout
	Sidebar        lipgloss.Style
	SidebarFocused lipgloss.Style
	Messages       lipgloss.Style
	Composer       lipgloss.Style
	ComposerFocus  lipgloss.Style
	StatusBar      lipgloss.Style
	Header         lipgloss.Style

	// Sidebar entries
	ChatItem     lipgloss.Style
	ChatSelected lipgloss.Style
	ChatActive   lipgloss.Style
	ChatPreview  lipgloss.Style

	// Messages
	Sender        lipgloss.Style
	Self          lipgloss.Style
	SystemMessage lipgloss.Style
	Timestamp     lipgloss.Style
	Pending       lipgloss.Style
	Failed        lipgloss.Style

	// Status
	Connected    lipgloss.Style
	Disconnected lipgloss.Style
	ErrorMessage lipgloss.Style
	InfoMessage  lipgloss.Style
	Muted        lipgloss.Style
}

// DefaultStyles returns the default Lipgloss styles
func DefaultStyles() *Styles {
	return &Styles{
		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),

		SidebarFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFocus).
			Padding(0, 1),

		Messages: lipgloss.NewStyle().
			Padding(0, 1),

		Composer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder),

		ComposerFocus: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFocus),

		StatusBar: lipgloss.NewStyle().
			Background(ColorBase01).
			Foreground(ColorBase05).
			Padding(0, 1),

		Header: lipgloss.NewStyle().
			Foreground(ColorBase07).
			Bold(true).
			Padding(0, 1),

		ChatItem: lipgloss.NewStyle().
			Foreground(ColorBase05),

		ChatSelected: lipgloss.NewStyle().
			Background(ColorSelection).
			Foreground(ColorBase07),

		ChatActive: lipgloss.NewStyle().
			Foreground(ColorFocus).
			Bold(true),

		ChatPreview: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true),

		Sender: lipgloss.NewStyle().
			Bold(true),

		Self: lipgloss.NewStyle().
			Foreground(ColorFocus).
			Bold(true),

		SystemMessage: lipgloss.NewStyle().
			Foreground(ColorInfo).
			Italic(true),

		Timestamp: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Pending: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Failed: lipgloss.NewStyle().
			Foreground(ColorError),

		Connected: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Disconnected: lipgloss.NewStyle().
			Foreground(ColorWarning),

		ErrorMessage: lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true),

		InfoMessage: lipgloss.NewStyle().
			Foreground(ColorInfo),

		Muted: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// SenderStyle returns a stable per-member style
func (s *Styles) SenderStyle(memberID string) lipgloss.Style {
	h := fnv.New32a()
	h.Write([]byte(memberID))
	return s.Sender.Foreground(senderColors[int(h.Sum32()%uint32(len(senderColors)))])
}
