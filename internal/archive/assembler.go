// Package archive writes fetched pages into a CBZ container. Entry names
// are zero-padded page indices so any reader sorting entries
// lexicographically shows them in reading order, and the file appears at
// its destination only once fully written.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brogergvhs/comicdl/internal/fetch"
)

// ErrEmptyArchive means no page succeeded, so there is nothing to write.
var ErrEmptyArchive = errors.New("no successfully fetched pages to archive")

// minPadWidth keeps entry names at least three digits wide, the convention
// comic readers expect.
const minPadWidth = 3

type Assembler struct{}

// Build writes the successful results into a ZIP at dest. The container is
// assembled in a temp file next to dest and renamed into place on success,
// so a crash mid-write never leaves a corrupt file at dest.
func (a *Assembler) Build(results []fetch.Result, dest string) (err error) {
	ok := make([]fetch.Result, 0, len(results))
	maxIndex := 0
	for _, r := range results {
		if r.Err != nil || len(r.Data) == 0 {
			continue
		}

		ok = append(ok, r)
		if r.Index > maxIndex {
			maxIndex = r.Index
		}
	}

	if len(ok) == 0 {
		return ErrEmptyArchive
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	z := zip.NewWriter(tmp)
	width := padWidth(maxIndex)

	for _, r := range ok {
		hdr := &zip.FileHeader{
			Name:   EntryName(r.Index, width, r.Ext),
			Method: zip.Deflate,
		}

		w, err := z.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("cbz entry %d: %w", r.Index, err)
		}
		if _, err := w.Write(r.Data); err != nil {
			return fmt.Errorf("cbz entry %d: %w", r.Index, err)
		}
	}

	if err = z.Close(); err != nil {
		return fmt.Errorf("cbz: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("cbz: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	if err = os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cbz: %w", err)
	}

	return nil
}

// EntryName builds the archive entry name for a page index. Lexicographic
// order over these names equals index order as long as width covers the
// largest index, which padWidth guarantees.
func EntryName(index, width int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}

	return fmt.Sprintf("%0*d%s", width, index, ext)
}

func padWidth(maxIndex int) int {
	width := 1
	for maxIndex >= 10 {
		maxIndex /= 10
		width++
	}

	if width < minPadWidth {
		width = minPadWidth
	}

	return width
}
