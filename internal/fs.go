package internal

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"LinkGrab/internal/scanner"
)

const (
	unknownFilename = "file_unknown"
	ellipsis        = "..."
	maxUniquify     = 10000
)

func unsafeRune(r rune) rune {
	if r < 0x20 || strings.ContainsRune(`<>:"|?*`, r) {
		return '_'
	}
	return r
}

// SanitizeFilename makes a name safe to show and to suggest as a download name.
// Long names keep their extension: base[:max-len(ext)-4] + "..." + ext.
// Only names that fit are free of ".."; the truncation marker brings it back.
func SanitizeFilename(name string, max int) string {
	if name == "" {
		return unknownFilename
	}
	clean := strings.Map(unsafeRune, name)
	clean = strings.ReplaceAll(clean, "..", "_")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return unknownFilename
	}
	if utf8.RuneCountInString(clean) <= max {
		return clean
	}

	runes := []rune(clean)
	dot := strings.LastIndexByte(clean, '.')
	if dot < 0 {
		return string(runes[:max])
	}
	ext := clean[dot+1:]
	keep := max - utf8.RuneCountInString(ext) - len(ellipsis) - 1
	if keep < 0 {
		// extension alone does not fit
		return string(runes[:max])
	}
	base := []rune(clean[:dot])
	if keep < len(base) {
		base = base[:keep]
	}
	return string(base) + ellipsis + ext
}

// FilenameFromURL returns the last '/'-separated segment of the raw link, query included.
func FilenameFromURL(raw string) string {
	return raw[strings.LastIndexByte(raw, '/')+1:]
}

// DiskName derives a file name for saving raw to disk.
func DiskName(raw string, max int) string {
	name := ""
	if u, err := url.Parse(raw); err == nil {
		// the escaped form keeps %2F inside one segment
		name = path.Base(u.EscapedPath())
		if seg, err := url.PathUnescape(name); err == nil {
			name = seg
		}
		if name == "/" || name == "." {
			name = ""
		}
	}
	name = SanitizeFilename(name, max)
	r := strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_")
	name = r.Replace(name)
	if name == "." || strings.Trim(name, ".") == "" {
		return unknownFilename
	}
	return name
}

// createTarget opens the destination file. With uniquify, an existing name
// gets " (N)" before the extension; the exclusive create keeps it race free.
func createTarget(dir, name string, conflict scanner.ConflictAction) (*os.File, string, error) {
	target := filepath.Join(dir, name)
	if conflict != scanner.ConflictUniquify {
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		return f, target, err
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxUniquify; i++ {
		if i > 0 {
			target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, target, nil
		}
		if !errors.Is(err, iofs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s in %s", name, dir)
}
