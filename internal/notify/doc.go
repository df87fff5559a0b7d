// Package notify carries terminal download outcomes from transfer workers
// to a single foreground consumer.
//
// # Queue
//
// Queue is an unbounded FIFO of Notification values. Workers push, the
// foreground loop drains. Completion events are rare, so the queue never
// blocks and never drops.
//
// # Signal
//
// Signal is a coalescing wake-up: any number of Raise calls between two
// Check calls are observed as one wake. A consumer must therefore drain the
// queue until empty on each wake.
//
// # Pipeline
//
// Pipeline ties the two together:
//
//	p := notify.NewPipeline()
//
//	// worker goroutine
//	p.Publish(notify.DownloadedFile{File: id, Metadata: meta})
//
//	// foreground loop, once per tick
//	for _, n := range p.Poll() {
//	    switch n := n.(type) {
//	    case notify.DownloadedFile:
//	        showSuccess(n.File)
//	    case notify.DownloadErrored:
//	        showFailure(n.File, n.Err)
//	    }
//	}
package notify
