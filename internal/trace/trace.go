// Package trace locates the XALT run record produced for a Slurm job.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// DirName is the per-user directory XALT writes run records into.
const DirName = ".xalt.d"

// ExecutionTrace is the slice of an XALT run record provenance needs.
type ExecutionTrace struct {
	JobID       string   `json:"job_id" yaml:"job_id"`
	StartTime   float64  `json:"start_time" yaml:"start_time"`
	EndTime     float64  `json:"end_time" yaml:"end_time"`
	CommandLine []string `json:"command_line,omitempty" yaml:"command_line,omitempty"`
	Path        string   `json:"path" yaml:"path"`
}

// record mirrors the fields read from an XALT JSON file.
type record struct {
	UserT struct {
		JobID json.RawMessage `json:"job_id"`
	} `json:"userT"`
	UserDT struct {
		StartTime *float64 `json:"start_time"`
		EndTime   *float64 `json:"end_time"`
	} `json:"userDT"`
	CmdlineA []string `json:"cmdlineA"`
}

// HomeResolver maps a user name to its home directory.
type HomeResolver func(username string) (string, error)

// OSHome resolves homes from the account database, so ~user is honored
// even when homes do not live under /home.
func OSHome(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}

// Locator scans a user's trace directory.
type Locator struct {
	Home HomeResolver
}

// NewLocator creates a locator backed by the system account database
func NewLocator() *Locator {
	return &Locator{Home: OSHome}
}

// Dir returns ~user/.xalt.d.
func (l *Locator) Dir(username string) (string, error) {
	home := l.Home
	if home == nil {
		home = OSHome
	}
	h, err := home(username)
	if err != nil {
		return "", &ReadError{Path: "~" + username, Err: err}
	}
	return filepath.Join(h, DirName), nil
}

// Find returns the trace for jobID. found is false (with a nil error) when no file
// matches. When several files match, the most recently modified one wins.
func (l *Locator) Find(jobID uint32, username string) (ExecutionTrace, bool, error) {
	dir, err := l.Dir(username)
	if err != nil {
		return ExecutionTrace{}, false, err
	}
	return FindIn(dir, jobID)
}

// FindIn is Find against an explicit directory.
func FindIn(dir string, jobID uint32) (ExecutionTrace, bool, error) {
	files, err := listFiles(dir)
	if err != nil {
		return ExecutionTrace{}, false, err
	}

	want := strconv.FormatUint(uint64(jobID), 10)
	for _, f := range files {
		rec, err := readRecord(f.path)
		if err != nil {
			return ExecutionTrace{}, false, err
		}
		if rec.jobID() != want {
			continue
		}
		tr, err := rec.toTrace(f.path)
		if err != nil {
			return ExecutionTrace{}, false, err
		}
		return tr, true, nil
	}
	return ExecutionTrace{}, false, nil
}

// FindAll parses every record in the user's trace directory, newest first.
func (l *Locator) FindAll(username string) ([]ExecutionTrace, error) {
	dir, err := l.Dir(username)
	if err != nil {
		return nil, err
	}
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	traces := make([]ExecutionTrace, 0, len(files))
	for _, f := range files {
		rec, err := readRecord(f.path)
		if err != nil {
			return nil, err
		}
		tr, err := rec.toTrace(f.path)
		if err != nil {
			return nil, err
		}
		traces = append(traces, tr)
	}
	return traces, nil
}

type candidate struct {
	path    string
	modTime time.Time
}

// listFiles returns regular files newest first, name ascending on ties.
// Symlinks are followed; dangling ones are skipped like any other non-file entry.
func listFiles(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ReadError{Path: dir, Err: err}
	}

	files := make([]candidate, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil {
			if e.Type()&os.ModeSymlink != 0 {
				continue
			}
			return nil, &ReadError{Path: path, Err: err}
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, candidate{path: path, modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].path < files[j].path
	})
	return files, nil
}

func readRecord(path string) (*record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return &rec, nil
}

// jobID renders userT.job_id as a string whether XALT wrote it quoted or bare.
func (r *record) jobID() string {
	raw := bytes.TrimSpace(r.UserT.JobID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (r *record) toTrace(path string) (ExecutionTrace, error) {
	if r.UserDT.StartTime == nil || r.UserDT.EndTime == nil {
		return ExecutionTrace{}, &ReadError{Path: path, Err: fmt.Errorf("userDT.start_time/end_time missing")}
	}
	return ExecutionTrace{
		JobID:       r.jobID(),
		StartTime:   *r.UserDT.StartTime,
		EndTime:     *r.UserDT.EndTime,
		CommandLine: r.CmdlineA,
		Path:        path,
	}, nil
}

// ReadError means the trace directory or one of its files could not be read or parsed.
type ReadError struct {
	Path string
	Err  error
}

// Error implements error interface
func (e *ReadError) Error() string {
	return fmt.Sprintf("trace read failed for %s: %v", e.Path, e.Err)
}

// Unwrap implements error unwrapping
func (e *ReadError) Unwrap() error {
	return e.Err
}
