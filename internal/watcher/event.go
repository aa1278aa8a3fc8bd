package watcher

// Op is a file system change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is one change, with Path relative to the watched root in slash form.
type Event struct {
	Path  string
	Op    Op
	IsDir bool
}

// Stale reports whether points stored for the file may no longer describe
// it. CREATE counts: editors save by renaming a temp file over the target.
func (e Event) Stale() bool {
	return !e.IsDir
}

// Gone reports a directory that was removed or moved away.
func (e Event) Gone() bool {
	return e.IsDir && e.Op.removes()
}

func (op Op) removes() bool {
	return op == OpDelete || op == OpRename
}
