package dispatcher

import (
	"os"

	"github.com/oddlama/forge/pkg/wire"
)

func handleDownload(req wire.Request) (wire.Response, bool) {
	p := req.(*wire.Download)

	content, err := os.ReadFile(p.File)
	if err != nil {
		return invalidField("file", err.Error()), false
	}
	return &wire.DownloadResult{Content: content}, false
}
