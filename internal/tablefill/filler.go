// Package tablefill generates filled-in copies of document templates from
// person profile data. Templates are text files containing {{key}}
// placeholders that resolve against the flattened profile document.
package tablefill

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LilyAva000/office-work/internal/profile"
)

var (
	// ErrInvalidTableType is returned for template names outside the
	// supported excel*/word* families.
	ErrInvalidTableType = errors.New("invalid table type")

	// ErrTemplateNotFound is returned when the named template file does not
	// exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNoPersons is returned when a fill request names nobody.
	ErrNoPersons = errors.New("no persons to fill")
)

// PersonData pairs a person id with their profile document.
type PersonData struct {
	ID  string
	Doc profile.Document
}

// Filler fills templates from templatesDir and writes results to outputDir.
// templatesDir contains xlsx/ and docx/ subdirectories holding
// "<name>-template.<ext>" files, mirroring the backend's template layout.
type Filler struct {
	templatesDir string
	outputDir    string
	concurrency  int
}

// New creates a Filler. outputDir is created on first use.
func New(templatesDir, outputDir string) *Filler {
	return &Filler{
		templatesDir: templatesDir,
		outputDir:    outputDir,
		concurrency:  4,
	}
}

// TemplateNames lists the fillable template names derived from the files on
// disk ("excel-info-template.xlsx" becomes "excel-info.xlsx"), sorted.
func (f *Filler) TemplateNames() ([]string, error) {
	var names []string
	for _, sub := range []string{"xlsx", "docx"} {
		entries, err := os.ReadDir(filepath.Join(f.templatesDir, sub))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s templates: %w", sub, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.Contains(name, "-template.") {
				continue
			}
			names = append(names, strings.Replace(name, "-template.", ".", 1))
		}
	}
	sort.Strings(names)
	return names, nil
}

// resolveTemplate maps a requested table name ("excel-table.xlsx") to the
// on-disk template path and the output extension.
func (f *Filler) resolveTemplate(tableName string) (path, ext string, err error) {
	switch {
	case strings.HasPrefix(tableName, "excel"):
		ext = "xlsx"
	case strings.HasPrefix(tableName, "word"):
		ext = "docx"
	default:
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTableType, tableName)
	}

	base := strings.SplitN(tableName, ".", 2)[0]
	templateName := fmt.Sprintf("%s-template.%s", base, ext)
	path = filepath.Join(f.templatesDir, ext, templateName)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}
	return path, ext, nil
}

// Fill generates one filled file per person and returns the name of the
// resulting artifact inside the output directory: the single output file for
// one person, or a zip bundling all outputs for several. Per-person fills run
// concurrently.
func (f *Filler) Fill(ctx context.Context, tableName string, persons []PersonData) (string, error) {
	if len(persons) == 0 {
		return "", ErrNoPersons
	}

	templatePath, ext, err := f.resolveTemplate(tableName)
	if err != nil {
		return "", err
	}

	template, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}

	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	base := strings.SplitN(tableName, ".", 2)[0]
	outputs := make([]string, len(persons))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, p := range persons {
		g.Go(func() error {
			name := fmt.Sprintf("%s-%s.%s", base, p.ID, ext)
			filled := substitute(template, p.Doc.Flatten())
			if err := os.WriteFile(filepath.Join(f.outputDir, name), filled, 0o644); err != nil {
				return fmt.Errorf("writing output for %s: %w", p.ID, err)
			}
			outputs[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return f.zipOutputs(outputs)
}

// zipOutputs bundles the named output files into a single archive in the
// output directory and returns the archive name.
func (f *Filler) zipOutputs(names []string) (string, error) {
	zipName := fmt.Sprintf("batch_output_%s_%s.zip",
		time.Now().UTC().Format("20060102_150405"), uuid.New().String()[:8])

	zf, err := os.Create(filepath.Join(f.outputDir, zipName))
	if err != nil {
		return "", fmt.Errorf("creating zip: %w", err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(f.outputDir, name))
		if err != nil {
			zw.Close()
			return "", fmt.Errorf("reading output %s: %w", name, err)
		}
		w, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return "", fmt.Errorf("adding %s to zip: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return "", fmt.Errorf("writing %s to zip: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing zip: %w", err)
	}
	return zipName, nil
}

// substitute replaces every {{key}} placeholder with the matching value.
// Unknown placeholders are left intact so a half-filled template is visibly
// half-filled rather than silently blanked.
func substitute(template []byte, values map[string]string) []byte {
	out := string(template)
	for k, v := range values {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return []byte(out)
}
