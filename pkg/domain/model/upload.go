package model

import "strings"

// UploadRequest is what the upload form submits
type UploadRequest struct {
	ProjectID   string
	Description string
	Tags        []string
	UserIP      string
	Archive     *ShapefileArchive
}

// UploadResult describes a finished upload
type UploadResult struct {
	Table *Table
	Files []string
}

// UploadDefaults holds the metadata values that are not taken from the form.
type UploadDefaults struct {
	SharedAccessList          string
	SharedPublishedAccessList string
	Tags                      []string
}

// AutoUploadTag marks every table created by this application
const AutoUploadTag = "auto_upload"

// DefaultUploadDefaults returns the access lists used when no configuration overrides them.
func DefaultUploadDefaults() UploadDefaults {
	return UploadDefaults{
		SharedAccessList:          "Map Editors",
		SharedPublishedAccessList: "Map Viewers",
	}
}

// SplitTags splits a comma separated tag list, dropping blanks.
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
