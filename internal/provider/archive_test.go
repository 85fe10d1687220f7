package provider

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"sort"
	"testing"

	"github.com/pragmatiks/pragma/internal/testutil"
)

func TestDetectProject(t *testing.T) {
	t.Run("reads the project manifest", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, dir, ProjectFile, "name: my-provider\nversion: 1.2.0\n")

		project, err := DetectProject(dir)
		if err != nil {
			t.Fatalf("DetectProject: %v", err)
		}
		if project.Name != "my-provider" || project.Version != "1.2.0" {
			t.Errorf("project = %+v", project)
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := DetectProject(t.TempDir())
		testutil.AssertErrorContains(t, err, "could not detect provider package")
	})

	t.Run("name is required", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, dir, ProjectFile, "version: 1.0.0\n")
		_, err := DetectProject(dir)
		testutil.AssertErrorContains(t, err, "name is required")
	})
}

func TestCreateTarball(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, ProjectFile, "name: my-provider\n")
	testutil.WriteFile(t, dir, "main.py", "print('hi')\n")
	testutil.WriteFile(t, dir, "pkg/handler.py", "pass\n")
	testutil.WriteFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")
	testutil.WriteFile(t, dir, "__pycache__/main.cpython-312.pyc", "bytecode")
	testutil.WriteFile(t, dir, "my_provider.egg-info/PKG-INFO", "metadata")
	testutil.WriteFile(t, dir, "node_modules/dep/index.js", "module.exports = {}")

	var buf bytes.Buffer
	if err := CreateTarball(dir, &buf); err != nil {
		t.Fatalf("CreateTarball: %v", err)
	}

	names := tarballEntries(t, &buf)
	want := []string{ProjectFile, "main.py", "pkg/handler.py"}
	sort.Strings(want)
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entries = %v, want %v", names, want)
			break
		}
	}
}

func tarballEntries(t *testing.T, r io.Reader) []string {
	t.Helper()
	gz, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("opening gzip: %v", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestTarballContentsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, ProjectFile, "name: my-provider\n")
	testutil.WriteFile(t, dir, "main.py", "print('hi')\n")

	var buf bytes.Buffer
	if err := CreateTarball(dir, &buf); err != nil {
		t.Fatalf("CreateTarball: %v", err)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("opening gzip: %v", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		if hdr.Name == "main.py" {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("reading entry: %v", err)
			}
			if string(data) != "print('hi')\n" {
				t.Errorf("contents = %q", data)
			}
			found = true
		}
	}
	if !found {
		t.Error("main.py not found in tarball")
	}
}
