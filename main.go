// TinyImage - desktop image compression through the TinyPNG API.
//
// - No args → open the window
// - Image paths → open the window with them listed
// - --compress <paths> → compress in the background, no window
// - tinyimage:// or file:// URL → routed like the matching argv
// - CLI subcommands/flags → CLI mode
//
// Build with: wails build (for all platforms)
package main

import (
	"embed"
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/tinyimage/tinyimage/internal/cli"
	"github.com/tinyimage/tinyimage/internal/wailsapp"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	args := os.Args[1:]

	if isCLIMode(args) {
		if err := cli.Execute(args); err != nil {
			os.Exit(1)
		}
		return
	}

	// Suppress GTK ibus input method warnings on Linux.
	if runtime.GOOS == "linux" && os.Getenv("GTK_IM_MODULE") == "" {
		os.Setenv("GTK_IM_MODULE", "none")
	}

	wailsapp.Assets = assets
	code, err := wailsapp.Run(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// isCLIMode reports whether args name a CLI subcommand or flag. File paths,
// URLs and --compress go to the desktop app.
//
// CLI mode when:
// - the first argument is a subcommand (compress, config, ...)
// - --help, -h or --version is present
func isCLIMode(args []string) bool {
	if len(args) == 0 {
		return false
	}
	if slices.Contains(cli.Commands, args[0]) {
		return true
	}
	for _, arg := range args {
		switch arg {
		case "--help", "-h", "--version":
			return true
		}
	}
	return false
}
