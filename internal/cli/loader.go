package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relayout/internal/compiler"
)

// LoadError is a coded error raised while loading a graph description.
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

// LoadGraph compiles the graph description at path. A file is compiled on
// its own; a directory is loaded as one CUE package, so a graph may be split
// across files.
func LoadGraph(path string) (*compiler.Graph, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph: %v", err)}
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading graph: %v", err)}
		}
		g, err := compiler.CompileGraphSource(path, src)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return g, nil
	}

	files, err := FindCUEFiles(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	g, err := compiler.CompileGraph(value)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return g, nil
}

// FindCUEFiles returns the .cue files directly inside dir. Subdirectories
// are separate CUE packages and are not part of the graph.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", context, err)}
}

// Error codes shared by all commands. Validation findings use the E1xx
// codes of compiler.ValidationError.
const (
	ErrCodeGeneric       = "E001"
	ErrCodeScanError     = "E002"
	ErrCodeNoFiles       = "E003"
	ErrCodeLoadFailed    = "E004"
	ErrCodeNotFound      = "E005"
	ErrCodeBuildFailed   = "E006"
	ErrCodeWriteFailed   = "E007"
	ErrCodeCompileFailed = "E008"
	ErrCodeInvalidGraph  = "E009"
	ErrCodeDatabase      = "E010"

	ErrCodeSchema     = "E020" // CUE schema violation
	ErrCodeBadLayout  = "E021"
	ErrCodeBadType    = "E022"
	ErrCodeBadOp      = "E023"
	ErrCodeBadOperand = "E024"
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeSchema
	case strings.HasPrefix(field, "layouts"):
		return ErrCodeBadLayout
	case field == "type":
		return ErrCodeBadType
	case field == "op":
		return ErrCodeBadOp
	case field == "operands":
		return ErrCodeBadOperand
	default:
		return ErrCodeCompileFailed
	}
}

// loadErrorResponse writes a load failure and returns the matching exit
// error: a missing input is a command error, a broken graph a failure.
func loadErrorResponse(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	if !compileFailure(code) {
		return WrapExitError(ExitCommandError, "failed to load graph", err)
	}
	return WrapExitError(ExitFailure, "failed to compile graph", err)
}
