package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
	"github.com/chenBenjamin97/match-analyzer/pkg/utils"
	"gopkg.in/yaml.v3"
)

//Supported artifact formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

//maxNameAttempts bounds the suffix search when several runs finish within the same second
const maxNameAttempts = 100

//FileWriter writes analysis results as json (default) or yaml files into a directory
type FileWriter struct {
	dir    string
	format string
	now    func() time.Time
}

//NewFileWriter creates given directory if needed and returns a writer into it
func NewFileWriter(dir, format string) (*FileWriter, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("NewFileWriter: unsupported format '%s'", format)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("NewFileWriter: could not create '%s': %w", dir, err)
	}

	return &FileWriter{dir: dir, format: format, now: time.Now}, nil
}

//Write persists result under a time derived name (analysis_YYYYmmdd_HHMMSS.<ext>) and returns its path.
//An existing file is never overwritten, a numeric suffix is added instead.
func (w *FileWriter) Write(result *analysis.AnalysisResult) (string, error) {
	data, err := w.encode(result)
	if err != nil {
		return "", err
	}

	base := "analysis_" + w.now().Format(utils.StampLayout)
	for i := 0; i < maxNameAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		p := filepath.Join(w.dir, name+"."+w.format)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return "", fmt.Errorf("%w: create '%s': %v", analysis.ErrWriteFailure, p, err)
		}

		if err := writeAndClose(f, data); err != nil {
			os.Remove(p)
			return "", fmt.Errorf("%w: write '%s': %v", analysis.ErrWriteFailure, p, err)
		}

		return p, nil
	}

	return "", fmt.Errorf("%w: no free file name for '%s' in '%s'", analysis.ErrWriteFailure, base, w.dir)
}

//WriteFile persists result at a caller supplied path, replacing any existing file
func (w *FileWriter) WriteFile(path string, result *analysis.AnalysisResult) error {
	data, err := w.encode(result)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write '%s': %v", analysis.ErrWriteFailure, path, err)
	}

	return nil
}

func (w *FileWriter) encode(result *analysis.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil result", analysis.ErrWriteFailure)
	}

	//keep "detections": [] rather than null for empty runs
	out := *result
	if out.Detections == nil {
		out.Detections = make([]analysis.FrameObservation, 0)
	}

	var data []byte
	var err error
	if w.format == FormatYAML {
		data, err = yaml.Marshal(&out)
	} else {
		data, err = json.MarshalIndent(&out, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", analysis.ErrWriteFailure, err)
	}

	return data, nil
}

//Read loads a result artifact written by a FileWriter, picking the decoder from the file extension
func Read(path string) (*analysis.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := &analysis.AnalysisResult{}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, result)
	default:
		err = json.Unmarshal(data, result)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: could not decode '%s': %w", path, err)
	}

	return result, nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
