package action

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
)

// ErrUnhandled is returned for an action the router does not know.
var ErrUnhandled = errors.New("unhandled action")

// Registry is the part of download.Registry the router drives.
type Registry interface {
	Start(id model.FileID, target download.Target) error
	Pause(id model.FileID) error
	Cancel(id model.FileID) error
	Snapshot(id model.FileID) (download.Snapshot, bool)
}

// Targets resolves a file identity to its download target.
type Targets interface {
	Target(id model.FileID) (download.Target, error)
}

// Router turns actions into registry calls.
type Router struct {
	registry Registry
	targets  Targets
	logger   *slog.Logger
}

// NewRouter creates a Router. A nil logger uses slog.Default.
func NewRouter(registry Registry, targets Targets, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, targets: targets, logger: logger}
}

// Dispatch performs a single action and returns the registry's answer:
// download.ErrAlreadyInProgress for a duplicate download, download.ErrNotFound
// for controlling an untracked file, or a catalog lookup error.
func (r *Router) Dispatch(a Action) error {
	switch a := a.(type) {
	case Download:
		return r.start(a.File)
	case Play:
		if snap, ok := r.registry.Snapshot(a.File); ok {
			switch snap.State {
			case download.StateCompleted, download.StateQueued, download.StateDownloading:
				return nil
			case download.StatePaused:
				return r.registry.Start(a.File, snap.Target)
			}
		}
		return r.start(a.File)
	case Resume:
		snap, ok := r.registry.Snapshot(a.File)
		if !ok {
			return download.ErrNotFound
		}
		if snap.State != download.StatePaused {
			return nil
		}
		return r.registry.Start(a.File, snap.Target)
	case Pause:
		return r.registry.Pause(a.File)
	case Cancel:
		return r.registry.Cancel(a.File)
	default:
		return fmt.Errorf("%w: %T", ErrUnhandled, a)
	}
}

func (r *Router) start(id model.FileID) error {
	target, err := r.targets.Target(id)
	if err != nil {
		return err
	}
	return r.registry.Start(id, target)
}

// DispatchAll performs each action independently. Duplicate downloads and
// unknown actions are ignored; other failures are logged and returned
// joined once every action has been tried.
func (r *Router) DispatchAll(actions ...Action) error {
	var errs []error
	for _, a := range actions {
		err := r.Dispatch(a)
		switch {
		case err == nil:
		case errors.Is(err, download.ErrAlreadyInProgress):
			r.logger.Debug("ignoring duplicate request", "action", a)
		case errors.Is(err, ErrUnhandled):
			r.logger.Debug("ignoring action", "action", fmt.Sprintf("%T", a))
		default:
			r.logger.Warn("action failed", "action", a, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
