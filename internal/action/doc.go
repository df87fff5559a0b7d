// Package action routes user requests (download, play, resume, pause,
// cancel) to the download registry.
//
// Front ends build Action values and hand them to a Router:
//
//	router := action.NewRouter(registry, catalog, logger)
//	if err := router.Dispatch(action.Download{File: id}); errors.Is(err, download.ErrAlreadyInProgress) {
//	    // already running, nothing to show
//	}
package action
