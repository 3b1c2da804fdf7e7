// Package results keeps a JSON record per translation job on disk
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"layout-translator/internal/document"
)

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	StatusPending  JobStatus = "pending"
	StatusRunning  JobStatus = "running"
	StatusComplete JobStatus = "complete"
	StatusError    JobStatus = "error"
)

const (
	metadataFile   = "metadata.json"
	sourceFile     = "source.pdf"
	translatedFile = "translated.pdf"
)

// Job is the persisted record of one translation
type Job struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	SourceMD5  string    `json:"source_md5,omitempty"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Progress   int       `json:"progress"`

	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`

	Pages       int `json:"pages"`
	Spans       int `json:"spans"`
	Placed      int `json:"placed"`
	FitFailures int `json:"fit_failures"`
	Degraded    int `json:"degraded"`

	Notes      []string  `json:"notes,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Done reports whether the job reached a final state
func (j *Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Manager stores jobs under baseDir, one directory per job ID. Writes are
// serialized; readers always see a complete record.
type Manager struct {
	mu      sync.Mutex
	baseDir string
}

// NewManager creates the base directory if needed
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, document.NewError(document.ErrPersistence, "failed to create results directory", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the storage root
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// NewJob returns a pending job with a fresh ID. It is not saved.
func NewJob(sourceName, sourceLang, targetLang string) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		SourceName: sourceName,
		Status:     StatusPending,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// JobDir returns the directory of a job. Separators in the ID are replaced,
// so a crafted ID cannot escape baseDir.
func (m *Manager) JobDir(id string) string {
	return filepath.Join(m.baseDir, sanitizeID(id))
}

// SourcePath is where the uploaded document of a job is kept
func (m *Manager) SourcePath(id string) string {
	return filepath.Join(m.JobDir(id), sourceFile)
}

// TranslatedPath is where the translated document of a job is written
func (m *Manager) TranslatedPath(id string) string {
	return filepath.Join(m.JobDir(id), translatedFile)
}

// Save writes the job record, stamping UpdatedAt
func (m *Manager) Save(job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(job)
}

func (m *Manager) save(job *Job) error {
	if job == nil || sanitizeID(job.ID) == "" {
		return document.NewError(document.ErrInvalidInput, "job has no ID", nil)
	}
	dir := m.JobDir(job.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return document.NewError(document.ErrPersistence, "failed to create job directory", err)
	}

	job.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return document.NewError(document.ErrPersistence, "failed to encode job", err)
	}

	path := filepath.Join(dir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return document.NewError(document.ErrPersistence, "failed to write job", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return document.NewError(document.ErrPersistence, "failed to write job", err)
	}
	return nil
}

// Load reads a job record
func (m *Manager) Load(id string) (*Job, error) {
	data, err := os.ReadFile(filepath.Join(m.JobDir(id), metadataFile))
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return &job, nil
}

// Update loads a job, applies fn and saves it
func (m *Manager) Update(id string, fn func(*Job)) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.Load(id)
	if err != nil {
		return nil, err
	}
	fn(job)
	if err := m.save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// List returns every readable job, newest first
func (m *Manager) List() ([]*Job, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var jobs []*Job
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		job, err := m.Load(entry.Name())
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// FindByMD5 returns the newest completed job for a source hash and target
// language, or nil. An empty targetLang matches any target.
func (m *Manager) FindByMD5(hash, targetLang string) (*Job, error) {
	if hash == "" {
		return nil, nil
	}
	jobs, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.SourceMD5 != hash || job.Status != StatusComplete {
			continue
		}
		if targetLang == "" || job.TargetLang == targetLang {
			return job, nil
		}
	}
	return nil, nil
}

// Incomplete returns the jobs that never reached a final state
func (m *Manager) Incomplete() ([]*Job, error) {
	jobs, err := m.List()
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, job := range jobs {
		if !job.Done() {
			out = append(out, job)
		}
	}
	return out, nil
}

// Delete removes a job and its files
func (m *Manager) Delete(id string) error {
	if sanitizeID(id) == "" {
		return document.NewError(document.ErrInvalidInput, "job has no ID", nil)
	}
	return os.RemoveAll(m.JobDir(id))
}

// Exists reports whether a job record is present
func (m *Manager) Exists(id string) bool {
	if sanitizeID(id) == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.JobDir(id), metadataFile))
	return err == nil
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(id)
	if id == "." || id == ".." {
		return ""
	}
	return id
}

// FileMD5 hashes a file. The hash identifies repeated uploads of the
// same document.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
