package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func render(color string, text string) string {
	if !colorEnabled {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

// ColorStackName styles a stack name
func ColorStackName(text string) string {
	return render("6", text)
}

// ColorBranch styles a branch name
func ColorBranch(text string) string {
	return render("12", text)
}

// ColorOK styles an up-to-date status
func ColorOK(text string) string {
	return render("2", text)
}

// ColorWarn styles a diverged or unpushed status
func ColorWarn(text string) string {
	return render("3", text)
}

// ColorDim makes text dim/gray
func ColorDim(text string) string {
	return render("8", text)
}
