package client

import (
	"path/filepath"
	"slices"
	"testing"
)

func relativePaths(files []*File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath()
	}
	return out
}

func TestBuildFiletree(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		photo := filepath.Join(t.TempDir(), "photo.jpg")
		writeFile(t, photo, "jpeg")

		tree, err := BuildFiletree([]ParsedPath{{FullPath: photo, Kind: PathFile}}, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		files := tree.Files()
		if len(files) != 1 {
			t.Fatalf("expected 1 file, got %d", len(files))
		}
		if got := files[0].RelativePath(); got != "photo.jpg" {
			t.Errorf("expected relative path photo.jpg, got %s", got)
		}
		if files[0].Size() != 4 {
			t.Errorf("expected size 4, got %d", files[0].Size())
		}
	})

	t.Run("nested directories keep structure", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "trips")
		writeFile(t, filepath.Join(root, "2024", "beach.jpg"), "jpeg")
		writeFile(t, filepath.Join(root, "2024", "surf.mp4"), "video")
		writeFile(t, filepath.Join(root, "cover.png"), "png")

		tree, err := BuildFiletree([]ParsedPath{{FullPath: root, Kind: PathDir}}, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"trips/2024/beach.jpg", "trips/2024/surf.mp4", "trips/cover.png"}
		if got := relativePaths(tree.Files()); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
		if tree.TotalSize() != 12 {
			t.Errorf("expected total size 12, got %d", tree.TotalSize())
		}
	})

	t.Run("dotfiles are skipped", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "album")
		writeFile(t, filepath.Join(root, ".DS_Store"), "junk")
		writeFile(t, filepath.Join(root, ".cache", "thumb.jpg"), "jpeg")
		writeFile(t, filepath.Join(root, "a.jpg"), "jpeg")

		tree, err := BuildFiletree([]ParsedPath{{FullPath: root, Kind: PathDir}}, "")
		if err != nil {
			t.Fatal(err)
		}

		want := []string{"album/a.jpg"}
		if got := relativePaths(tree.Files()); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("into wraps every root", func(t *testing.T) {
		tmp := t.TempDir()
		photo := filepath.Join(tmp, "photo.jpg")
		album := filepath.Join(tmp, "album")
		writeFile(t, photo, "jpeg")
		writeFile(t, filepath.Join(album, "a.png"), "png")

		tree, err := BuildFiletree([]ParsedPath{
			{FullPath: photo, Kind: PathFile},
			{FullPath: album, Kind: PathDir},
		}, "holiday")
		if err != nil {
			t.Fatal(err)
		}

		if len(tree.Roots) != 1 {
			t.Fatalf("expected a single virtual root, got %d roots", len(tree.Roots))
		}
		want := []string{"holiday/photo.jpg", "holiday/album/a.png"}
		if got := relativePaths(tree.Files()); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("empty paths returns error", func(t *testing.T) {
		tree, err := BuildFiletree(nil, "")
		if err == nil {
			t.Fatal("expected error for empty paths")
		}
		if tree != nil {
			t.Error("expected nil tree for empty paths")
		}
	})
}

func TestCreateVirtualRoot(t *testing.T) {
	file1 := &File{path: "/tmp/file1.jpg", name: "file1.jpg"}
	dir := &Dir{path: "/tmp/album", name: "album"}

	virtualRoot := createVirtualRoot("bundle", []Node{file1, dir})

	if len(virtualRoot.children) != 2 {
		t.Errorf("expected 2 children, got %d", len(virtualRoot.children))
	}
	if file1.dir != virtualRoot {
		t.Error("expected file1 dir to be set to virtualRoot")
	}
	if dir.parent != virtualRoot {
		t.Error("expected album parent to be set to virtualRoot")
	}
	if virtualRoot.parent != nil {
		t.Error("expected virtual root to have no parent")
	}
}
