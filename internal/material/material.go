package material

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/alexeynavarkin/materialstore/internal/metadata"
)

// ObjectsDir is the directory below a job run that holds artifact files.
const ObjectsDir = "objects"

// Material is one stored artifact. The zero value is NullMaterial, the
// "absent" side of an unmatched product.
type Material struct {
	jobName      JobName
	jobTimestamp JobTimestamp
	id           ID
	fileType     FileType
	md           metadata.Metadata
	present      bool
}

var NullMaterial = Material{}

func New(jobName JobName, jobTimestamp JobTimestamp, id ID, fileType FileType, md metadata.Metadata) Material {
	return Material{
		jobName:      jobName,
		jobTimestamp: jobTimestamp,
		id:           id,
		fileType:     fileType,
		md:           md,
		present:      true,
	}
}

func (m Material) IsNull() bool { return !m.present }
func (m Material) JobName() JobName { return m.jobName }
func (m Material) JobTimestamp() JobTimestamp { return m.jobTimestamp }
func (m Material) ID() ID { return m.id }
func (m Material) FileType() FileType { return m.fileType }
func (m Material) Metadata() metadata.Metadata { return m.md }
func (m Material) Diffability() Diffability { return m.fileType.Diffability() }

// RelativePath locates the artifact below the store root using forward
// slashes. NullMaterial has no path.
func (m Material) RelativePath() string {
	if m.IsNull() {
		return ""
	}
	return ObjectPath(m.jobName, m.jobTimestamp, m.id, m.fileType)
}

func ObjectPath(jobName JobName, jobTimestamp JobTimestamp, id ID, fileType FileType) string {
	return path.Join(string(jobName), string(jobTimestamp), ObjectsDir, string(id)+"."+fileType.Extension())
}

func (m Material) Equal(other Material) bool {
	if m.present != other.present {
		return false
	}
	if !m.present {
		return true
	}
	return m.jobName == other.jobName &&
		m.jobTimestamp == other.jobTimestamp &&
		m.id == other.id &&
		m.fileType == other.fileType &&
		m.md.Equal(other.md)
}

func (m Material) String() string {
	if m.IsNull() {
		return "Material(null)"
	}
	return fmt.Sprintf("Material(%s %s %s %s)", m.RelativePath(), m.fileType, m.id.Short(), m.md)
}

type materialJSON struct {
	JobName      JobName           `json:"jobName"`
	JobTimestamp JobTimestamp      `json:"jobTimestamp"`
	ID           ID                `json:"id"`
	FileType     FileType          `json:"fileType"`
	Metadata     metadata.Metadata `json:"metadata"`
	Path         string            `json:"path"`
}

func (m Material) MarshalJSON() ([]byte, error) {
	if m.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(materialJSON{
		JobName:      m.jobName,
		JobTimestamp: m.jobTimestamp,
		ID:           m.id,
		FileType:     m.fileType,
		Metadata:     m.md,
		Path:         m.RelativePath(),
	})
}

// MaterialList is the ordered result of one store selection.
type MaterialList struct {
	jobName      JobName
	jobTimestamp JobTimestamp
	query        metadata.Query
	materials    []Material
	present      bool
}

var NullMaterialList = MaterialList{}

func NewMaterialList(jobName JobName, jobTimestamp JobTimestamp, query metadata.Query, materials []Material) MaterialList {
	return MaterialList{
		jobName:      jobName,
		jobTimestamp: jobTimestamp,
		query:        query,
		materials:    append([]Material(nil), materials...),
		present:      true,
	}
}

func (l MaterialList) IsNull() bool { return !l.present }
func (l MaterialList) JobName() JobName { return l.jobName }
func (l MaterialList) JobTimestamp() JobTimestamp { return l.jobTimestamp }
func (l MaterialList) Query() metadata.Query { return l.query }
func (l MaterialList) Len() int { return len(l.materials) }
func (l MaterialList) At(i int) Material { return l.materials[i] }

func (l MaterialList) Materials() []Material {
	return append([]Material(nil), l.materials...)
}

func (l MaterialList) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JobName      JobName        `json:"jobName"`
		JobTimestamp JobTimestamp   `json:"jobTimestamp"`
		Query        metadata.Query `json:"query"`
		Materials    []Material     `json:"materials"`
	}{l.jobName, l.jobTimestamp, l.query, l.Materials()})
}
