package ssh

import (
	"embed"
	"fmt"
)

//go:embed bin
var dispatcherBinaries embed.FS

// dispatcherBinary returns the pre-cross-compiled forge-dispatcher binary
// for the given uname-reported OS/arch pair, or ok=false if none was
// embedded for it. See bin/README.md for how this directory is populated.
func dispatcherBinary(goos, goarch string) (data []byte, ok bool) {
	name := fmt.Sprintf("bin/forge-dispatcher-%s-%s", goos, goarch)
	b, err := dispatcherBinaries.ReadFile(name)
	if err != nil {
		return nil, false
	}
	return b, true
}
