package display

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// BannerInfo describes the running client for the startup banner.
type BannerInfo struct {
	Endpoint string // inference URL
	Format   string // upload container, "wav" or "flac"
	Speech   string // e.g. "Azure (westeurope)" or "off"
}

// KeyHints is the one-line summary of the global key bindings.
const KeyHints = "ctrl+r record/stop · ctrl+s ask AI · ctrl+x stop speaking"

// RenderBanner returns the startup banner for the current terminal: the
// centred art, where questions go and how answers are spoken, then the
// key hints.
func RenderBanner(info BannerInfo) string {
	return renderBanner(termWidth(), info)
}

func renderBanner(width int, info BannerInfo) string {
	art := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")

	maxW := 0
	for _, l := range art {
		if len(l) > maxW {
			maxW = len(l)
		}
	}
	pad := ""
	if width > maxW {
		pad = strings.Repeat(" ", (width-maxW)/2)
	}

	var b strings.Builder
	for _, l := range art {
		b.WriteString(pad)
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	speech := info.Speech
	if speech == "" {
		speech = "off"
	}
	lines := []string{
		fmt.Sprintf("Asking  %s (%s)", info.Endpoint, info.Format),
		fmt.Sprintf("Speech  %s", speech),
		KeyHints,
		"Type 'help' for commands, 'quit' to exit.",
	}
	for _, l := range lines {
		b.WriteString(BannerStyle.Render("  " + l))
		b.WriteByte('\n')
	}
	return b.String()
}

// termWidth returns the terminal column count, or 80 when stdout is not
// a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
