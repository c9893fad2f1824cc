// TinyImage command-line build. It carries no webview, so it runs on
// headless machines and in CI.
//
// Build with: go build -ldflags "-X github.com/tinyimage/tinyimage/internal/version.Version=vX.Y.Z" ./cmd/tinyimage
package main

import (
	"os"

	"github.com/tinyimage/tinyimage/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
