package commands

import (
	"strings"

	"github.com/pterm/pterm"
)

const logo = `
   _____            ____
  / ___/__  _______/ __ \___  _________  ____
  \__ \/ / / / ___/ /_/ / _ \/ ___/ __ \/ __ \
 ___/ / /_/ (__  ) _, _/  __/ /__/ /_/ / / / /
/____/\__, /____/_/ |_|\___/\___/\____/_/ /_/
     /____/
`

// printBanner menampilkan logo + peringatan authorized use.
func printBanner() {
	pterm.FgCyan.Print(logo + "\n")
	pterm.DefaultCenter.Println(pterm.FgGray.Sprint("v" + Version + " - host security audit"))
	pterm.Println()
	pterm.DefaultBox.
		WithTitle(pterm.FgYellow.Sprint("AUTHORIZED USE ONLY")).
		WithTitleBottomCenter().
		WithRightPadding(2).
		WithLeftPadding(2).
		Println("Audit only hosts you own or are authorized to assess.\nMemory dumps may contain credentials; handle them as sensitive data.")
	pterm.Println(strings.Repeat("*", 70))
}
