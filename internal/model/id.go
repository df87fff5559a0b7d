package model

import (
	"fmt"
	"strings"
)

// FileID identifies a downloadable file within the catalog.
//
// The zero value is not a valid identity. FileID is comparable and can be
// used directly as a map key.
type FileID struct {
	ModelID  string
	FileName string
}

// NewFileID returns the identity of fileName within modelID.
func NewFileID(modelID, fileName string) FileID {
	return FileID{ModelID: modelID, FileName: fileName}
}

// String renders the identity as "model/file".
func (id FileID) String() string {
	return id.ModelID + "/" + id.FileName
}

// IsZero reports whether id is the zero identity.
func (id FileID) IsZero() bool {
	return id.ModelID == "" && id.FileName == ""
}

// ParseFileID parses the form produced by FileID.String.
//
// Model ids may themselves contain a slash ("author/name"), so the file name
// is everything after the last slash.
func ParseFileID(s string) (FileID, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return FileID{}, fmt.Errorf("invalid file id %q: want model/file", s)
	}
	return FileID{ModelID: s[:i], FileName: s[i+1:]}, nil
}
