package metrics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile dumps g in the text exposition format for the node-exporter
// textfile collector. An empty path is a no-op. The write is atomic.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, g), "write metrics %s", path)
}
