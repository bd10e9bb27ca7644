// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package importer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Register the formats image.DecodeConfig understands
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/diffeo/go-mediamanager/mediamanager"
)

// extensions lists the file name extensions considered importable.
var extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// FindFiles lists the importable image files under dir, sorted by
// path.  If recursive is false only dir itself is searched.  If dir
// does not exist or holds no importable files, returns
// mediamanager.ErrNoFilesFound.
func FindFiles(dir string, recursive bool) ([]string, error) {
	var files []string
	if recursive {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// unreadable subtrees are skipped, not fatal
				if info != nil && info.IsDir() && path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.IsDir() && importable(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		infos, err := ioutil.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, info := range infos {
			path := filepath.Join(dir, info.Name())
			if !info.IsDir() && importable(path) {
				files = append(files, path)
			}
		}
	}
	if len(files) == 0 {
		return nil, mediamanager.ErrNoFilesFound{Dir: dir}
	}
	sort.Strings(files)
	return files, nil
}

func importable(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// fileInfo is what the importer learns about one file.
type fileInfo struct {
	Path     string
	Format   string
	Width    int
	Height   int
	Filesize int64
	Checksum string
	ModTime  int64
}

// readFile reads the header and checksum of one image file.
func readFile(path string) (info fileInfo, err error) {
	info.Path = path
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return
	}
	info.Filesize = stat.Size()
	info.ModTime = stat.ModTime().UnixNano()

	config, format, err := image.DecodeConfig(f)
	if err != nil {
		err = fmt.Errorf("%v: %v", path, err)
		return
	}
	info.Format = format
	info.Width = config.Width
	info.Height = config.Height

	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return
	}
	hash := md5.New()
	_, err = io.Copy(hash, f)
	if err != nil {
		return
	}
	info.Checksum = hex.EncodeToString(hash.Sum(nil))
	return
}

// thumbnailSize scales a geometry to fit within a square box,
// preserving the aspect ratio.
func thumbnailSize(width, height, box int) (int, int) {
	if width <= box && height <= box {
		return width, height
	}
	if width >= height {
		return box, maxInt(1, height*box/width)
	}
	return maxInt(1, width*box/height), box
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
