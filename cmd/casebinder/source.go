package main

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lllllllleong/casebinder/internal/ingest"
	"github.com/Lllllllleong/casebinder/internal/models"
)

// fileSource reads documents back from the local files they were ingested from.
type fileSource struct{}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func (fileSource) Open(_ context.Context, doc models.Document) ([]byte, error) {
	u, err := url.Parse(doc.SourceURI)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("document %s has no local source: %q", doc.ID, doc.SourceURI)
	}
	return os.ReadFile(filepath.FromSlash(u.Path))
}

// collectFiles expands the given files and directories into ingestion
// items, sorted by path. Hidden files are skipped. A file inside a
// sub-directory of a given directory takes that sub-directory as its tag
// unless tag is set.
func collectFiles(paths []string, tag string) ([]ingest.Item, error) {
	var items []ingest.Item
	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && path != abs {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			itemTag := tag
			if itemTag == "" {
				if rel, err := filepath.Rel(abs, path); err == nil {
					if dir, _, found := strings.Cut(filepath.ToSlash(rel), "/"); found {
						itemTag = dir
					}
				}
			}
			items = append(items, fileItem(path, info, itemTag))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].SourceURI < items[j].SourceURI })
	return items, nil
}

func fileItem(path string, info fs.FileInfo, tag string) ingest.Item {
	return ingest.Item{
		Filename:   info.Name(),
		MIMEType:   mime.TypeByExtension(filepath.Ext(path)),
		Tag:        tag,
		Size:       info.Size(),
		SourceURI:  fileURI(path),
		UploadedAt: info.ModTime().UTC(),
		Load: func(context.Context) ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}
