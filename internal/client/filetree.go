package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filetree is the set of local files selected for upload. Directories
// keep their structure so it can be mirrored as folders on the server.
type Filetree struct {
	Roots []Node
}

// BuildFiletree walks the parsed paths. When into is not empty, all roots
// are placed under a virtual directory of that name.
func BuildFiletree(paths []ParsedPath, into string) (*Filetree, error) {
	var rootNodes []Node

	for _, parsedPath := range paths {
		if parsedPath.Kind == PathDir {
			dirNode, err := buildDirTree(parsedPath.FullPath)
			if err != nil {
				return nil, err
			}
			rootNodes = append(rootNodes, dirNode)
		} else {
			info, err := os.Stat(parsedPath.FullPath)
			if err != nil {
				return nil, err
			}
			fileNode := &File{
				path: parsedPath.FullPath,
				name: filepath.Base(parsedPath.FullPath),
				size: info.Size(),
			}
			rootNodes = append(rootNodes, fileNode)
		}
	}

	if len(rootNodes) == 0 {
		return nil, fmt.Errorf("no valid paths provided")
	}

	if into != "" {
		rootNodes = []Node{createVirtualRoot(into, rootNodes)}
	}

	return &Filetree{Roots: rootNodes}, nil
}

func buildDirTree(dirPath string) (*Dir, error) {
	dir := &Dir{
		path:     dirPath,
		name:     filepath.Base(dirPath),
		children: []Node{},
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		// skip dotfiles such as .DS_Store
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childPath := filepath.Join(dirPath, entry.Name())

		switch {
		case entry.IsDir():
			childDir, err := buildDirTree(childPath)
			if err != nil {
				return nil, err
			}
			childDir.parent = dir
			dir.children = append(dir.children, childDir)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				return nil, err
			}
			childFile := &File{
				path: childPath,
				name: entry.Name(),
				size: info.Size(),
				dir:  dir,
			}
			dir.children = append(dir.children, childFile)
		}
	}

	return dir, nil
}

func createVirtualRoot(name string, children []Node) *Dir {
	virtualRoot := &Dir{
		path:     name,
		name:     name,
		children: children,
	}

	for _, child := range children {
		if dir, ok := child.(*Dir); ok {
			dir.parent = virtualRoot
		} else if file, ok := child.(*File); ok {
			file.dir = virtualRoot
		}
	}

	return virtualRoot
}

// Files returns every file in the tree, depth first.
func (ft *Filetree) Files() []*File {
	var out []*File
	var walk func(n Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *File:
			out = append(out, v)
		case *Dir:
			for _, child := range v.children {
				walk(child)
			}
		}
	}
	for _, root := range ft.Roots {
		walk(root)
	}
	return out
}

// TotalSize is the combined size of all files in the tree.
func (ft *Filetree) TotalSize() int64 {
	var total int64
	for _, f := range ft.Files() {
		total += f.size
	}
	return total
}
