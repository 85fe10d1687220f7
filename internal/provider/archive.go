// Package provider supports the custom provider build lifecycle:
// project detection and source tarball creation for pushes to the
// platform build service.
package provider

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the provider project manifest filename.
const ProjectFile = "provider.yaml"

// TarballExcludes lists directory names never shipped in a push.
var TarballExcludes = []string{
	".git",
	".venv",
	"__pycache__",
	".pytest_cache",
	"dist",
	"node_modules",
}

// Project is the provider project manifest.
type Project struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// DetectProject reads the project manifest from a provider source
// directory.
func DetectProject(dir string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, fmt.Errorf("could not detect provider package in %s: %w", dir, err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ProjectFile, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%s: name is required", ProjectFile)
	}
	return &p, nil
}

// CreateTarball writes a gzipped tar of the provider source directory
// to w, skipping excluded directories at any depth. Paths inside the
// archive are relative to dir.
func CreateTarball(dir string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", dir, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archiving %s: %w", dir, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("archiving %s: %w", dir, err)
	}
	return nil
}

func excluded(name string) bool {
	for _, e := range TarballExcludes {
		if name == e {
			return true
		}
	}
	// Egg-info style build metadata also stays local.
	return strings.HasSuffix(name, ".egg-info")
}
