package content

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

// Upload is a stored project image.
type Upload struct {
	URL      string `json:"imageUrl"`
	Filename string `json:"filename"`
}

// UploadImage validates, re-encodes and stores an image under a fresh name.
func (s *Service) UploadImage(ctx context.Context, actor, projectName, filename, contentType string, data []byte) (Upload, error) {
	if !s.Paths.Images.Configured() {
		return Upload{}, invalid("Image uploads not configured")
	}
	if err := s.Images.Validate(filename, contentType, int64(len(data))); err != nil {
		return Upload{}, err
	}
	webp, err := s.Images.Transcode(data)
	if err != nil {
		return Upload{}, err
	}

	entries, err := s.Files.List(ctx, ref(s.Paths.Images))
	if err != nil {
		return Upload{}, err
	}
	existing := make([]string, 0, len(entries))
	for _, e := range entries {
		existing = append(existing, e.Name)
	}
	name := imaging.Name(projectName, existing)

	if _, err := s.Files.Put(ctx, ref(s.Paths.Images, name), webp, "Upload project image: "+name, ""); err != nil {
		return Upload{}, err
	}
	s.record(actor, "image_uploaded", "projects", optional(name), map[string]any{"bytes": len(webp)})
	return Upload{URL: s.Paths.PublicPrefix + name, Filename: name}, nil
}

type imageRefs struct {
	ImageURL string `json:"imageUrl"`
	Image    string `json:"image"`
}

func imageFiles(items []json.RawMessage) map[string]struct{} {
	out := map[string]struct{}{}
	for _, raw := range items {
		var r imageRefs
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		for _, u := range []string{r.ImageURL, r.Image} {
			if name := localImage(u); name != "" {
				out[name] = struct{}{}
			}
		}
	}
	return out
}

// localImage returns the basename of a repository-hosted image reference.
// Absolute http(s) URLs point elsewhere and yield "".
func localImage(u string) string {
	u = strings.TrimSpace(u)
	lower := strings.ToLower(u)
	if u == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "//") {
		return ""
	}
	name := path.Base(u)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// OrphanedImages lists image files referenced by old but not by current, sorted.
func OrphanedImages(old, current []json.RawMessage) []string {
	keep := imageFiles(current)
	var out []string
	for name := range imageFiles(old) {
		if _, ok := keep[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DeleteImages removes the named files from the images directory. Files
// that are already gone count as deleted. Every name is attempted; the
// joined error reports the failures.
func (s *Service) DeleteImages(ctx context.Context, names []string) error {
	entries, err := s.Files.List(ctx, ref(s.Paths.Images))
	if err != nil {
		return err
	}
	revs := make(map[string]string, len(entries))
	for _, e := range entries {
		revs[e.Name] = e.Revision
	}
	var errs []error
	for _, name := range names {
		rev, ok := revs[name]
		if !ok {
			continue
		}
		if err := s.Files.Delete(ctx, ref(s.Paths.Images, name), "Delete unused image: "+name, rev); err != nil {
			s.logger().WithError(err).WithField("image", name).Warn("failed to delete orphaned image")
			errs = append(errs, err)
			continue
		}
		s.logger().WithField("image", name).Info("deleted orphaned image")
	}
	return errors.Join(errs...)
}

func (s *Service) cleanupTask(names []string) tasks.Task {
	return tasks.Task{Name: "image_cleanup", Run: func(ctx context.Context) error {
		return s.DeleteImages(ctx, names)
	}}
}
