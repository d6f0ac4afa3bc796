// Package loader reads shape definitions written in CUE and builds the
// shape registry the compiler consumes.
//
// Shapes live under a top-level "shape" struct, one field per GraphQL type:
//
//	shape: Address: {
//		targetClass: ["http://schema.org/PostalAddress"]
//		property: city: {path: "http://schema.org/addressLocality"}
//	}
//
// Errors are *LoadError values carrying a stable code and, where CUE knows
// it, the source position.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/shapeql/internal/shape"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the shapes loaded from a directory or source.
type LoadResult struct {
	Shapes    []*shape.Shape
	Registry  *shape.Registry // nil when any shape failed to compile
	FileCount int
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Shape definition errors
	ErrCodeInvalidPath     = "E101" // Missing or malformed path
	ErrCodeInvalidNode     = "E102" // node is not a shape name
	ErrCodeInvalidNodeKind = "E103" // nodeKind is not IRI or Literal
	ErrCodeInvalidMinCount = "E104" // minCount is not a non-negative int
	ErrCodeInvalidClass    = "E105" // targetClass is not a string list
	ErrCodeInvalidRegistry = "E106" // duplicate shapes or dangling node references
)

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "path":
		return ErrCodeInvalidPath
	case "node", "datatype":
		return ErrCodeInvalidNode
	case "nodeKind":
		return ErrCodeInvalidNodeKind
	case "minCount":
		return ErrCodeInvalidMinCount
	case "targetClass":
		return ErrCodeInvalidClass
	default:
		return ErrCodeGeneric
	}
}

// LoadShapes loads every CUE file in dir as one instance and compiles its
// shapes. If mode is LoadModeFailFast, returns on first error.
func LoadShapes(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("shapes directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing shapes directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir, Package: "_"})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result, errs := compileValue(value, mode)
	if result != nil {
		result.FileCount = len(cueFiles)
	}
	return result, errs
}

// LoadSource compiles shapes from CUE source text. filename is used in
// error positions.
func LoadSource(filename, src string, mode LoadMode) (*LoadResult, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		le := &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
		var ce *CompileError
		if errors.As(formatCUEError(err), &ce) {
			le.Pos = ce.Pos
		}
		return nil, []error{le}
	}
	return compileValue(value, mode)
}

// LoadFile loads shapes from a single CUE file.
func LoadFile(path string, mode LoadMode) (*LoadResult, []error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading shapes file: %v", err)}}
	}
	result, errs := LoadSource(path, string(src), mode)
	if result != nil {
		result.FileCount = 1
	}
	return result, errs
}

// Load loads shapes from path, which may be a directory or a single file.
func Load(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		return LoadFile(path, mode)
	}
	return LoadShapes(path, mode)
}

func compileValue(value cue.Value, mode LoadMode) (*LoadResult, []error) {
	var errs []error
	result := &LoadResult{}

	shapesVal := value.LookupPath(cue.ParsePath("shape"))
	if !shapesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no shapes found"}}
	}

	iter, err := shapesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating shapes: %v", err)}}
	}
	for iter.Next() {
		s, compileErr := CompileShape(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "shape."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Shapes = append(result.Shapes, s)
	}
	if len(errs) > 0 {
		return result, errs
	}

	registry, err := shape.NewRegistry(result.Shapes...)
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeInvalidRegistry, Message: err.Error()}}
	}
	result.Registry = registry
	return result, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a CompileError to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
