package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Artifact names used in disk usage reports.
const (
	ArtifactCorpus  = "corpus"
	ArtifactLexical = "bm25"
	ArtifactHNSW    = "hnsw"
	ArtifactIDs     = "ids"
	ArtifactNormas  = "normas"
)

// ArtifactSize is the on-disk footprint of one artifact.
type ArtifactSize struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	// Files counts regular files; a directory store holds one per norm.
	Files int `json:"files"`
}

// Usage is the footprint of every artifact that exists on disk.
type Usage struct {
	Artifacts  []ArtifactSize `json:"artifacts"`
	TotalBytes int64          `json:"totalBytes"`
}

// Bytes returns the size of the named artifact, or 0 when it was not found.
func (u *Usage) Bytes(name string) int64 {
	for _, a := range u.Artifacts {
		if a.Name == name {
			return a.Bytes
		}
	}
	return 0
}

// MeasureUsage sizes each named artifact path. A path may be a file (corpus,
// bm25, hnsw, ids, a sqlite database) or a directory (the dir and badger norm
// stores). Empty and missing paths are left out of the report.
func MeasureUsage(paths map[string]string) (*Usage, error) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	u := &Usage{Artifacts: []ArtifactSize{}}
	for _, name := range names {
		p := paths[name]
		if p == "" {
			continue
		}
		size, err := measure(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		size.Name = name
		u.Artifacts = append(u.Artifacts, size)
		u.TotalBytes += size.Bytes
	}
	return u, nil
}

func measure(path string) (ArtifactSize, error) {
	s := ArtifactSize{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		return s, err
	}
	if !info.IsDir() {
		s.Bytes, s.Files = info.Size(), 1
		return s, nil
	}
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		s.Bytes += fi.Size()
		s.Files++
		return nil
	})
	return s, err
}
