package zkim

import (
	"time"

	"github.com/zkimio/zkim-core/pkg/wire"
)

// AccessControl mirrors spec.md §3's optional accessControl metadata
// field: three independent sets gating read, write, and delete.
type AccessControl struct {
	ReadAccess   []string `json:"readAccess,omitempty"`
	WriteAccess  []string `json:"writeAccess,omitempty"`
	DeleteAccess []string `json:"deleteAccess,omitempty"`
}

// RetentionPolicy mirrors spec.md §3's optional retentionPolicy field.
// Enforcing it (auto-deleting expired files, counting accesses) is a
// host responsibility; the core only carries the policy through.
type RetentionPolicy struct {
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	MaxAccessCount int        `json:"maxAccessCount,omitempty"`
	AutoDelete     bool       `json:"autoDelete,omitempty"`
}

// Metadata is the plaintext metadata block from spec.md §3. It is never
// stored unencrypted on the wire: layer 1 carries {metadata,
// searchableText} and layer 2 carries {fileId, contentKey, metadata}.
type Metadata struct {
	FileName     string            `json:"fileName"`
	MimeType     string            `json:"mimeType"`
	CreatedAt    time.Time         `json:"createdAt"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	AccessControl *AccessControl   `json:"accessControl,omitempty"`
	Retention    *RetentionPolicy  `json:"retention,omitempty"`
}

// MetadataPatch carries partial updates for UpdateMetadata: a nil field
// leaves the corresponding Metadata field untouched, a non-nil field
// (including an empty slice/map) replaces it wholesale.
type MetadataPatch struct {
	FileName      *string
	MimeType      *string
	Tags          *[]string
	CustomFields  *map[string]string
	AccessControl *AccessControl
	Retention     *RetentionPolicy
}

// apply returns a copy of m with every non-nil field of p applied.
func (m Metadata) apply(p MetadataPatch) Metadata {
	out := m
	if p.FileName != nil {
		out.FileName = *p.FileName
	}
	if p.MimeType != nil {
		out.MimeType = *p.MimeType
	}
	if p.Tags != nil {
		out.Tags = *p.Tags
	}
	if p.CustomFields != nil {
		out.CustomFields = *p.CustomFields
	}
	if p.AccessControl != nil {
		out.AccessControl = p.AccessControl
	}
	if p.Retention != nil {
		out.Retention = p.Retention
	}
	return out
}

// File is the host-facing handle returned by CreateFile and GetFile: the
// plaintext metadata the service instance knows about, paired with the
// encoded container that is the only thing actually written to storage.
type File struct {
	ID        string
	ObjectID  string
	OwnerID   string
	Metadata  Metadata
	Container *wire.Container
}
