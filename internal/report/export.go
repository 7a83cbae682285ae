package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/common/expfmt"
)

// Text renders all metrics in the Prometheus text exposition format.
func (m *Metrics) Text() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// TextfileName is the node_exporter textfile for a job.
func TextfileName(jobID uint32) string {
	return fmt.Sprintf("trohook_job_%d.prom", jobID)
}

// WriteTextfile writes metrics for node_exporter's textfile collector.
// The file is renamed into place so the collector never reads a partial write.
func (m *Metrics) WriteTextfile(dir string, jobID uint32) (string, error) {
	text, err := m.Text()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, TextfileName(jobID))
	tmp, err := os.CreateTemp(dir, ".trohook-*.prom.tmp")
	if err != nil {
		return "", fmt.Errorf("create textfile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write textfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close textfile: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("chmod textfile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename textfile: %w", err)
	}
	return path, nil
}
