package domain

import (
	json "github.com/goccy/go-json"
)

// VersionInfo describes the deployable artifact resolved for one job type.
type VersionInfo struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	State   string `json:"state"`
}

// VersionSet is an immutable, flow-scoped mapping from job type to the
// artifact version the flow was pinned to at submission time. It is shared
// by reference across every node of a flow and never mutated after
// construction.
type VersionSet struct {
	versions map[string]VersionInfo
	md5      string
	id       int64
}

// NewVersionSet parses the canonical JSON form of a version set, paired with
// its content hash and numeric identifier.
func NewVersionSet(rawJSON, md5Hex string, id int64) (*VersionSet, error) {
	versions := make(map[string]VersionInfo)
	if err := json.Unmarshal([]byte(rawJSON), &versions); err != nil {
		return nil, err
	}

	return &VersionSet{
		versions: versions,
		md5:      md5Hex,
		id:       id,
	}, nil
}

func (vs *VersionSet) Version(jobType string) (VersionInfo, bool) {
	info, ok := vs.versions[jobType]
	return info, ok
}

func (vs *VersionSet) MD5() string {
	return vs.md5
}

func (vs *VersionSet) ID() int64 {
	return vs.id
}

func (vs *VersionSet) Size() int {
	return len(vs.versions)
}

func (vs *VersionSet) Types() []string {
	types := make([]string, 0, len(vs.versions))
	for t := range vs.versions {
		types = append(types, t)
	}
	return types
}
