package tapesort

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const stagingName = "fileA.txt"

// workspace is the private scratch directory of one sort invocation. Tape
// names inside it are deterministic; the directory name is not, so
// concurrent and nested sorts sharing a temp dir never collide.
type workspace struct {
	dir string
}

// newWorkspace creates <tempDir>/tapesort-<strategy>-<uuid>.
func newWorkspace(tempDir string, s Strategy) (*workspace, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	dir := filepath.Join(tempDir, "tapesort-"+s.String()+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// staging returns the path of the file the chunk sorter writes.
func (w *workspace) staging() string {
	return w.path(stagingName)
}

// tapes returns n tape paths named <prefix>0.txt .. <prefix>{n-1}.txt.
func (w *workspace) tapes(prefix string, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = w.path(prefix + strconv.Itoa(i) + ".txt")
	}
	return paths
}

// cleanup removes the workspace and everything in it. Idempotent.
func (w *workspace) cleanup() error {
	if w.dir == "" {
		return nil
	}
	err := os.RemoveAll(w.dir)
	w.dir = ""
	if err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
