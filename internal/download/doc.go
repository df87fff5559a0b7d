// Package download manages the lifecycle of model file transfers.
//
// # Registry
//
// The Registry owns every task and is the only place task state changes:
//
//	Queued → Downloading → Completed | Errored | Paused | Cancelled
//	Paused → Downloading | Cancelled
//
// At most one active (Queued, Downloading or Paused) task exists per file.
// A finished task is replaced by a fresh instance on the next Start.
//
// # Basic Usage
//
//	pipeline := notify.NewPipeline()
//	reg := download.NewRegistry(download.Options{
//	    Fetcher:       http.NewClient(settings.ToClientOptions()),
//	    Publisher:     pipeline,
//	    MaxConcurrent: settings.MaxConcurrentDownloads,
//	})
//	defer reg.Close()
//
//	reg.Start(id, target) // begin or resume
//	reg.Pause(id)         // keep partial data
//	reg.Cancel(id)        // discard partial data
//
//	snap, ok := reg.Snapshot(id)
//
// # Workers
//
// Each transfer runs in its own goroutine. Workers write into a partial
// file named after the task instance, check for pause or cancel after
// every chunk, verify size and checksum, and rename the file into place.
// Only then is the task marked Completed and a DownloadedFile published.
// Failures are published as DownloadErrored carrying a *TransferError.
// Cancelled tasks never publish anything.
//
// # Concurrency
//
// MaxConcurrent limits transferring workers with a weighted semaphore;
// waiting tasks stay Queued. Progress updates are coalesced to at most one
// per ProgressInterval, so readers should trust only the latest snapshot.
package download
