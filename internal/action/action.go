package action

import (
	"fmt"

	"github.com/handiism/model-downloader/internal/model"
)

// Action is a user request concerning one file. The set of actions is
// closed: only the types in this package implement it.
type Action interface {
	FileID() model.FileID
	action()
}

// Download starts a file, resumes it when paused, or downloads it again
// when a previous attempt finished.
type Download struct{ File model.FileID }

// Play asks for a file to be ready for use. An untracked or failed file is
// downloaded, a paused one resumed, and a completed one left alone.
type Play struct{ File model.FileID }

// Resume continues a paused file and does nothing otherwise.
type Resume struct{ File model.FileID }

// Pause stops a running download, keeping its partial data.
type Pause struct{ File model.FileID }

// Cancel abandons a download and discards its partial data.
type Cancel struct{ File model.FileID }

func (a Download) FileID() model.FileID { return a.File }
func (a Play) FileID() model.FileID     { return a.File }
func (a Resume) FileID() model.FileID   { return a.File }
func (a Pause) FileID() model.FileID    { return a.File }
func (a Cancel) FileID() model.FileID   { return a.File }

func (Download) action() {}
func (Play) action()     {}
func (Resume) action()   {}
func (Pause) action()    {}
func (Cancel) action()   {}

func (a Download) String() string { return fmt.Sprintf("download %s", a.File) }
func (a Play) String() string     { return fmt.Sprintf("play %s", a.File) }
func (a Resume) String() string   { return fmt.Sprintf("resume %s", a.File) }
func (a Pause) String() string    { return fmt.Sprintf("pause %s", a.File) }
func (a Cancel) String() string   { return fmt.Sprintf("cancel %s", a.File) }
