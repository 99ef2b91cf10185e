package language

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

type globRule struct {
	pattern glob.Glob
	id      ID
}

type detector struct {
	byExt      map[string]ID
	byFilename map[string]ID
	globs      []globRule
}

func newDetector(specs map[ID]Spec) (*detector, error) {
	d := &detector{
		byExt:      make(map[string]ID),
		byFilename: make(map[string]ID),
	}
	for _, id := range sortedIDs(specs) {
		spec := specs[id]
		if !spec.Enabled {
			continue
		}
		for _, ext := range normalizeExtensions(spec.Extensions) {
			d.byExt[ext] = id
		}
		for _, name := range normalizeFilenames(spec.Filenames) {
			d.byFilename[name] = id
		}
		for _, pattern := range spec.Globs {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, err
			}
			d.globs = append(d.globs, globRule{pattern: g, id: id})
		}
	}
	return d, nil
}

func (d *detector) detect(path string) (ID, bool) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	base := strings.ToLower(filepath.Base(normalized))

	if id, ok := d.byFilename[base]; ok {
		return id, true
	}
	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if id, ok := d.byExt[ext]; ok {
			return id, true
		}
	}
	for _, rule := range d.globs {
		if rule.pattern.Match(normalized) {
			return rule.id, true
		}
	}
	return "", false
}
