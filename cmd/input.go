package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/vartree/internal/assign"
	"github.com/agentic-research/vartree/internal/codec"
	"github.com/agentic-research/vartree/internal/nv"
)

// formatOf picks the input format from the file extension. Anything that
// is not JSON, YAML or HCL is read as assignment text.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".hcl", ".tf":
		return "hcl"
	}
	return "text"
}

// varName derives a variable name from a file name.
func varName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "data"
	}
	return b.String()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// loadFile reads path into sc. format "" picks one from the extension;
// name is the variable documents are imported as, "" derives it from the
// file name.
func loadFile(s *nv.Store, sc *nv.Scope, path, format, name string, stdin io.Reader) error {
	data, err := readInput(path, stdin)
	if err != nil {
		return err
	}
	if format == "" {
		format = formatOf(path)
	}
	if name == "" {
		name = varName(path)
	}
	switch format {
	case "text":
		err = assign.Eval(s, sc, string(data))
	case "json":
		err = codec.ImportJSON(s, sc, name, data)
	case "yaml":
		err = codec.ImportYAML(s, sc, name, data)
	case "hcl":
		err = codec.ImportHCL(s, sc, name, path, data)
	default:
		return fmt.Errorf("unknown format %q (expected text, json, yaml, or hcl)", format)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logger.V(1).Info("loaded input", "path", path, "format", format)
	return nil
}

// loadInputs reads every path into a fresh store. No paths reads
// assignment text from stdin.
func loadInputs(paths []string, stdin io.Reader) (*nv.Store, error) {
	s := newStore()
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	for _, p := range paths {
		if err := loadFile(s, s.Global(), p, "", "", stdin); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// selected returns the named variables, or every set variable when names
// is empty.
func selected(s *nv.Store, sc *nv.Scope, names []string) ([]*nv.Entry, error) {
	if len(names) == 0 {
		names = sc.Names()
		var out []*nv.Entry
		for _, n := range names {
			if e, ok := s.Lookup(sc, n); ok && !e.IsNull() {
				out = append(out, e)
			}
		}
		return out, nil
	}
	out := make([]*nv.Entry, 0, len(names))
	for _, n := range names {
		e, ok := s.Lookup(sc, n)
		if !ok {
			return nil, fmt.Errorf("%s: %w", n, nv.ErrNotFound)
		}
		out = append(out, e)
	}
	return out, nil
}
