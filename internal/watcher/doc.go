// Package watcher keeps a workspace index in step with the file system.
//
// A Watcher follows the workspace with fsnotify, skipping excluded and
// git-ignored paths, and emits debounced batches of events. Sync consumes
// those batches and removes the points of every file that was written,
// deleted or renamed, and of every directory that disappeared, so stale
// chunks never surface in search results. Re-embedding the new contents is
// left to the caller.
//
//	w, err := watcher.New(root, watcher.Options{Debounce: 500 * time.Millisecond})
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Run(ctx) }()
//	return watcher.Sync(ctx, w.Batches(), vectorStore, logger)
package watcher
