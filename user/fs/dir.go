package fs

import "github.com/gopheros/exo/kernel/errno"

// dirLookup searches dir, a directory file, for an entry named name and
// returns it. Matches fs/fs.c's dir_lookup.
func dirLookup(dir *File, name string) (*File, *errno.Errno) {
	nblock := dir.Size / blkSize
	for i := uint32(0); i < nblock; i++ {
		blkVA, err := GetBlock(dir, i)
		if err != nil {
			return nil, err
		}
		entries := ptrAt[[blkFiles]File](blkVA)
		for j := range entries {
			if nameEquals(entries[j].Name[:], name) {
				return &entries[j], nil
			}
		}
	}
	e := errno.NotFound
	return nil, &e
}

// dirAllocFile finds (or makes room for) a free directory-entry slot inside
// dir and returns it, uninitialized, for the caller to fill in. Matches
// fs/fs.c's dir_alloc_file.
func dirAllocFile(dir *File) (*File, *errno.Errno) {
	nblock := dir.Size / blkSize
	for i := uint32(0); i < nblock; i++ {
		blkVA, err := GetBlock(dir, i)
		if err != nil {
			return nil, err
		}
		entries := ptrAt[[blkFiles]File](blkVA)
		for j := range entries {
			if entries[j].Name[0] == 0 {
				return &entries[j], nil
			}
		}
	}

	dir.Size += blkSize
	blkVA, err := GetBlock(dir, nblock)
	if err != nil {
		return nil, err
	}
	entries := ptrAt[[blkFiles]File](blkVA)
	return &entries[0], nil
}

func nameEquals(field []byte, name string) bool {
	if len(name) >= len(field) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if field[i] != name[i] {
			return false
		}
	}
	return field[len(name)] == 0
}

func setName(field []byte, name string) {
	n := copy(field, name)
	if n < len(field) {
		field[n] = 0
	}
}

// skipSlash trims leading slashes from path.
func skipSlash(path string) string {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	return path[i:]
}

// walkPath resolves path starting from the root directory, returning the
// file it names. If the file does not exist but its parent directory does,
// dir is still returned (with a nil file and errno.NotFound) so Create can
// add an entry to it. Matches fs/fs.c's walk_path.
func walkPath(path string) (dir, file *File, lastElem string, err *errno.Errno) {
	path = skipSlash(path)
	f := &super.Root
	var d *File

	for path != "" {
		d = f
		i := 0
		for i < len(path) && path[i] != '/' {
			i++
		}
		if i >= maxNameLen {
			e := errno.BadPath
			return nil, nil, "", &e
		}
		name := path[:i]
		path = skipSlash(path[i:])

		if d.Type != FTypeDir {
			e := errno.NotFound
			return nil, nil, "", &e
		}

		next, lookErr := dirLookup(d, name)
		if lookErr != nil {
			if *lookErr == errno.NotFound && path == "" {
				return d, nil, name, lookErr
			}
			return nil, nil, "", lookErr
		}
		f = next
	}

	return d, f, "", nil
}

// Create creates a new, empty regular file at path. Matches fs/fs.c's
// file_create.
func Create(path string) (*File, *errno.Errno) {
	dir, existing, name, err := walkPath(path)
	if existing != nil {
		e := errno.FileExists
		return nil, &e
	}
	if err == nil || *err != errno.NotFound || dir == nil {
		return nil, err
	}

	f, allocErr := dirAllocFile(dir)
	if allocErr != nil {
		return nil, allocErr
	}

	*f = File{}
	setName(f.Name[:], name)
	f.Type = FTypeReg
	Flush(dir)
	return f, nil
}

// Open resolves path to an existing file. Matches fs/fs.c's file_open.
func Open(path string) (*File, *errno.Errno) {
	_, f, _, err := walkPath(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
