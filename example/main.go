// Command example is the worked analogue of original_source/example/site.py
// + example/tasks/zsh.py: it links pkg/forge, registers the zsh task, and
// hands control to forge.Main(), which parses `run <inventory> zsh` off
// argv (spec.md §6).
package main

import (
	"github.com/oddlama/forge/example/tasks"
	"github.com/oddlama/forge/pkg/forge"
)

// version is overridden at build time via -ldflags, mirroring the
// teacher's cmd/dfsctl version injection.
var version = "dev"

func main() {
	forge.New(version).
		RegisterTask("zsh", tasks.Zsh).
		Main()
}
