package tui

import (
	"github.com/killallgit/huddle/pkg/store"
	"github.com/killallgit/huddle/pkg/tui/theme"
)

// statusLine renders connection state, the active chat's load state and
// the last inline error or notice
func statusLine(styles *theme.Styles, view store.View, errMsg, info string, width int) string {
	conn := styles.Connected.Render("● connected")
	if !view.Connected {
		conn = styles.Disconnected.Render("○ reconnecting")
	}

	line := conn
	if view.State == store.ActiveChatLoading {
		line += styles.Muted.Render("  loading history")
	}
	switch {
	case errMsg != "":
		line += "  " + styles.ErrorMessage.Render(errMsg)
	case info != "":
		line += "  " + styles.InfoMessage.Render(info)
	default:
		line += styles.Muted.Render("  tab focus · ctrl+n new chat · ctrl+c quit")
	}
	return styles.StatusBar.Width(width).Render(line)
}
