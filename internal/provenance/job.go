// Package provenance drives the external TRO tool through the arrangement,
// performance and sign steps for one job.
package provenance

import (
	"fmt"
	"path/filepath"
)

// Job identifies the document a hook instance works on.
type Job struct {
	ID        uint32
	SubmitDir string
	User      string
}

// DocumentPath is {submitDir}/tro-{jobId}.jsonld.
func (j Job) DocumentPath() string {
	return filepath.Join(j.SubmitDir, fmt.Sprintf("tro-%d.jsonld", j.ID))
}
