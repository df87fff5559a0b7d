package notify

import (
	"fmt"

	"github.com/handiism/model-downloader/internal/model"
)

// Notification is a one-shot record of a terminal transfer outcome.
//
// The set of implementations is closed: DownloadedFile and DownloadErrored.
type Notification interface {
	// FileID returns the file the outcome belongs to.
	FileID() model.FileID

	notification()
}

// DownloadedFile reports a file that was fully written and verified.
type DownloadedFile struct {
	File     model.FileID
	Metadata model.FileMetadata
	Path     string
}

func (n DownloadedFile) FileID() model.FileID { return n.File }
func (DownloadedFile) notification()          {}

func (n DownloadedFile) String() string {
	return fmt.Sprintf("downloaded %s", n.File)
}

// DownloadErrored reports a transfer that failed.
type DownloadErrored struct {
	File model.FileID
	Err  error
}

func (n DownloadErrored) FileID() model.FileID { return n.File }
func (DownloadErrored) notification()          {}

func (n DownloadErrored) String() string {
	return fmt.Sprintf("download of %s failed: %v", n.File, n.Err)
}
