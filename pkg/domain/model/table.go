package model

import "strings"

// Project is a mapping API project the user has access to
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TableFile is one file reference inside table metadata
type TableFile struct {
	Filename     string `json:"filename"`
	Size         string `json:"size,omitempty"`
	UploadStatus string `json:"uploadStatus,omitempty"`
}

// TableMetadata is the body sent when creating an empty table asset.
type TableMetadata struct {
	Name                      string      `json:"name"`
	Description               string      `json:"description"`
	Files                     []TableFile `json:"files"`
	SharedAccessList          string      `json:"sharedAccessList"`
	SharedPublishedAccessList string      `json:"sharedPublishedAccessList"`
	Tags                      []string    `json:"tags"`
}

// Table is a table asset as returned by the mapping API
type Table struct {
	ID               string      `json:"id"`
	ProjectID        string      `json:"projectId,omitempty"`
	Name             string      `json:"name,omitempty"`
	Description      string      `json:"description,omitempty"`
	ProcessingStatus string      `json:"processingStatus,omitempty"`
	Files            []TableFile `json:"files,omitempty"`
	Tags             []string    `json:"tags,omitempty"`
	CreationTime     string      `json:"creationTime,omitempty"`
	LastModifiedTime string      `json:"lastModifiedTime,omitempty"`
}

// CID is the customer id prefix of the table id, used to build links into the
// mapping web UI.
func (x *Table) CID() string {
	if x.ID == "" {
		return ""
	}
	cid, _, _ := strings.Cut(x.ID, "-")
	return cid
}
