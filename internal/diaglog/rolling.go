package diaglog

import (
	"fmt"
	"os"
)

// backupSuffix names the single previous generation kept next to the live log.
const backupSuffix = ".1"

// rotatingFile appends to path and, once the next write would push it past
// limit, moves it aside to path+".1" and starts a fresh file. At most two
// generations exist on disk, so the total footprint stays under 2*limit.
// Callers serialise writes.
type rotatingFile struct {
	path  string
	limit int64
	f     *os.File
	size  int64
}

func openRotating(path string, limit int64) (*rotatingFile, error) {
	rf := &rotatingFile{path: path, limit: limit}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	rf.f, rf.size = f, info.Size()
	return nil
}

func (rf *rotatingFile) rotate() error {
	if err := rf.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(rf.path, rf.path+backupSuffix); err != nil {
		return fmt.Errorf("rotate %s: %w", rf.path, err)
	}
	return rf.open()
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	if rf.size > 0 && rf.size+int64(len(p)) > rf.limit {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *rotatingFile) Close() error {
	_ = rf.f.Sync()
	return rf.f.Close()
}

// generations lists the on-disk log files for path, oldest first.
func generations(path string) []string {
	var out []string
	if _, err := os.Stat(path + backupSuffix); err == nil {
		out = append(out, path+backupSuffix)
	}
	return append(out, path)
}
