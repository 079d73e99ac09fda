package upload

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/metrics"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/parser"
)

// FileInput is one uploaded file before parsing.
type FileInput struct {
	Name string
	Data []byte
}

// ParsedFile is one file's isolated parse outcome. A failed file never
// aborts its siblings; the session reports it and the caller decides
// whether to proceed without it.
type ParsedFile struct {
	Name  string
	Table *parser.Table
	Err   error
}

// parseFiles parses every input concurrently. Each file produces an
// isolated outcome with no shared mutable state, so fan-out is safe.
func parseFiles(files []FileInput, opt parser.Options) []*ParsedFile {
	out := make([]*ParsedFile, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f FileInput) {
			defer wg.Done()
			pf := &ParsedFile{Name: f.Name}
			pf.Table, pf.Err = parser.File(f.Name, f.Data, opt)

			status := "ok"
			if pf.Err != nil {
				status = "error"
			}
			metrics.IncCounter(metrics.FilesParsedTotal, 1, metrics.Labels{
				"format": strings.TrimPrefix(filepath.Ext(f.Name), "."),
				"status": status,
			})
			out[i] = pf
		}(i, f)
	}
	wg.Wait()
	return out
}
