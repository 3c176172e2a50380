// Package attachment resolves the image files that accompany image.push.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akyaiy/GoSally-connector/internal/connector/fault"
	"github.com/akyaiy/GoSally-connector/internal/core/run_manager"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// DefaultMaxExtractSize bounds the bytes written while extracting one archive.
const DefaultMaxExtractSize int64 = 512 << 20

var (
	ErrUnsafePath  = errors.New("archive entry escapes the target directory")
	ErrArchiveSize = errors.New("archive exceeds the extraction limit")
	ErrImageSize   = errors.New("remote image exceeds the size limit")
)

// Image is the part of an image model the resolver works with.
type Image interface {
	HostID() int64
	Relation() string
	Remote() string
	SetFilename(path string)
}

type Resolver struct {
	client         *http.Client
	log            *slog.Logger
	maxExtractSize int64
}

func NewResolver(client *http.Client, log *slog.Logger, maxExtractSize int64) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if maxExtractSize <= 0 {
		maxExtractSize = DefaultMaxExtractSize
	}
	return &Resolver{client: client, log: log, maxExtractSize: maxExtractSize}
}

// Resolve extracts archive into a directory of scope and points every image
// at its file. Images with a remote URL are downloaded instead. Every path
// produced here, the archive included, is tracked by scope.
func (r *Resolver) Resolve(ctx context.Context, scope *run_manager.Scope, archive string, images []Image) error {
	if archive == "" {
		return fault.Application("no image archive was uploaded", nil)
	}
	scope.Track(archive)
	if _, err := os.Stat(archive); err != nil {
		return fault.Application("image archive is not readable", err)
	}

	dir, err := scope.MkdirTemp("images-*")
	if err != nil {
		return fault.Application("cannot create image directory", err)
	}

	if err := r.extract(archive, dir); err != nil {
		os.RemoveAll(dir)
		os.Remove(archive)
		return fault.Compression(fmt.Sprintf("archive %s could not be extracted", filepath.Base(archive)), err)
	}
	os.Remove(archive)

	files, err := listFiles(dir)
	if err != nil {
		return fault.Application("cannot list extracted images", err)
	}
	r.log.Debug("image archive extracted", slog.Int("files", len(files)), slog.Int("images", len(images)))

	for _, img := range images {
		if remote := img.Remote(); remote != "" {
			p, err := r.fetch(ctx, scope, remote)
			if err != nil {
				return fault.Application(fmt.Sprintf("could not get any data from url: %s", remote), err)
			}
			img.SetFilename(p)
			continue
		}
		if p, ok := Match(files, img.HostID(), img.Relation()); ok {
			img.SetFilename(p)
		}
	}
	return nil
}

// Match returns the first file named {hostId}_{relationType}, ignoring the
// extension and the case of the relation type.
func Match(files []string, hostID int64, relation string) (string, bool) {
	for _, f := range files {
		name := filepath.Base(f)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		parts := strings.Split(name, "_")
		if len(parts) < 2 {
			continue
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id != hostID {
			continue
		}
		if strings.EqualFold(parts[1], relation) {
			return f, true
		}
	}
	return "", false
}

func (r *Resolver) extract(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	clean := filepath.Clean(dir)
	root := clean + string(os.PathSeparator)
	budget := r.maxExtractSize
	for _, f := range zr.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if target == clean {
			continue
		}
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		n, err := writeEntry(f, target, budget)
		if err != nil {
			return err
		}
		budget -= n
	}
	return nil
}

func writeEntry(f *zip.File, target string, budget int64) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, io.LimitReader(src, budget+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n > budget {
		return n, ErrArchiveSize
	}
	return n, nil
}

// listFiles returns the regular files directly inside dir, dotfiles excluded.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func (r *Resolver) fetch(ctx context.Context, scope *run_manager.Scope, remote string) (string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	base := strings.ReplaceAll(path.Base(u.Path), "*", "")
	if base == "." || base == "/" {
		base = "image"
	}
	f, err := scope.CreateTemp(uuid.NewString() + "_*_" + base)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, r.maxExtractSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > r.maxExtractSize {
		err = fmt.Errorf("%w: more than %d bytes", ErrImageSize, r.maxExtractSize)
	}
	if err != nil {
		return "", err
	}
	return f.Name(), nil
}
