package geo

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnknownFormat = errors.New("unknown geometry format")

// Loader loads a detail from path. Load is the default implementation;
// callers substitute their own to plug in another storage backend.
type Loader func(path string) (*Detail, error)

// Load reads a detail, picking the format from the file extension:
// .yaml/.yml for the text format, .gdet for the chunked binary format.
func Load(path string) (*Detail, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAMLFile(path)
	case ".gdet":
		return LoadBinaryFile(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Save writes d in the format implied by the extension of path.
func Save(path string, d *Detail) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SaveYAMLFile(path, d)
	case ".gdet":
		return SaveBinaryFile(path, d)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

func parseOwner(s string) (Owner, error) {
	switch strings.ToLower(s) {
	case "point", "points", "":
		return OwnerPoint, nil
	case "primitive", "primitives", "prim":
		return OwnerPrimitive, nil
	case "vertex", "vertices":
		return OwnerVertex, nil
	case "detail", "global":
		return OwnerDetail, nil
	}
	return 0, fmt.Errorf("unknown attribute owner %q", s)
}

func parseClass(s string) (StorageClass, error) {
	switch strings.ToLower(s) {
	case "float", "":
		return StorageFloat, nil
	case "int", "integer":
		return StorageInt, nil
	case "string":
		return StorageString, nil
	}
	return 0, fmt.Errorf("unknown storage class %q", s)
}
