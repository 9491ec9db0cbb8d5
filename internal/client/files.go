package client

import (
	"slices"
	"strings"
)

// Node is an entry in a local upload tree.
type Node interface {
	Path() string
	Name() string
}

type File struct {
	path string
	name string
	size int64
	dir  *Dir
}

type Dir struct {
	path     string
	name     string
	children []Node
	parent   *Dir
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Size() int64 {
	return f.size
}

// RelativePath is the slash-separated path from the top of the file's
// tree. The server recreates its directory part as a folder chain.
func (f *File) RelativePath() string {
	parts := []string{f.name}
	for d := f.dir; d != nil; d = d.parent {
		parts = append(parts, d.name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) Name() string {
	return d.name
}
