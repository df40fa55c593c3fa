package filters

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Write stores f as a text table: a header line
//
//	# name=<name> kind=<hankel|fourier> factor=<factor>
//
// followed by one "base weightA weightB" row per point. Numbers use the
// shortest representation that parses back to the same float64, so a table
// round-trips exactly.
func Write(w io.Writer, f *Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# name=%s kind=%s factor=%s\n", f.Name, f.Kind, format(f.Factor))
	a, b := f.Weights()
	for i := range f.Base {
		fmt.Fprintf(bw, "%s %s %s\n", format(f.Base[i]), format(a[i]), format(b[i]))
	}
	return bw.Flush()
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Read parses a table written by Write
func Read(r io.Reader) (*Filter, error) {
	sc := bufio.NewScanner(r)
	f := &Filter{}
	var a, b []float64
	header := false
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if header {
				continue
			}
			header = true
			for _, field := range strings.Fields(strings.TrimPrefix(text, "#")) {
				key, value, ok := strings.Cut(field, "=")
				if !ok {
					continue
				}
				switch key {
				case "name":
					f.Name = value
				case "kind":
					kind, err := ParseKind(value)
					if err != nil {
						return nil, fmt.Errorf("line %d: %w", line, err)
					}
					f.Kind = kind
				case "factor":
					v, err := strconv.ParseFloat(value, 64)
					if err != nil {
						return nil, fmt.Errorf("line %d: invalid factor: %w", line, err)
					}
					f.Factor = v
				}
			}
			continue
		}

		cols := strings.Fields(text)
		if len(cols) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns, got %d", line, len(cols))
		}
		var vals [3]float64
		for i, c := range cols {
			v, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}
		f.Base = append(f.Base, vals[0])
		a = append(a, vals[1])
		b = append(b, vals[2])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading filter table: %w", err)
	}
	if !header {
		return nil, fmt.Errorf("missing filter header")
	}

	if f.Kind == Fourier {
		f.Sin, f.Cos = a, b
	} else {
		f.J0, f.J1 = a, b
	}
	if f.Factor == 0 && len(f.Base) > 1 {
		f.Factor = f.Base[1] / f.Base[0]
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Save writes f to path, creating the directory if needed
func Save(f *Filter, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating filter directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating filter file: %w", err)
	}
	if err := Write(file, f); err != nil {
		file.Close()
		return fmt.Errorf("error writing filter file: %w", err)
	}
	return file.Close()
}

// Load reads a filter table from path
func Load(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening filter file: %w", err)
	}
	defer file.Close()
	f, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("error parsing filter file %s: %w", path, err)
	}
	return f, nil
}
