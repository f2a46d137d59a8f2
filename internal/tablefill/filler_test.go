package tablefill

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LilyAva000/office-work/internal/profile"
)

func testDoc(name, dept string) profile.Document {
	doc := profile.New()
	doc.BasicInfo.PersonalInfo["姓名"] = name
	doc.BasicInfo.WorkInfo["部门"] = dept
	doc.Evaluation["2023"] = "优秀"
	return doc
}

func newTestFiller(t *testing.T) *Filler {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"xlsx", "docx"} {
		if err := os.MkdirAll(filepath.Join(dir, "templates", sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	template := "姓名: {{姓名}}\n部门: {{部门}}\n2023年度: {{evaluation.2023}}\n"
	if err := os.WriteFile(filepath.Join(dir, "templates", "xlsx", "excel-info-template.xlsx"), []byte(template), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "templates", "docx", "word-info-template.docx"), []byte(template), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(filepath.Join(dir, "templates"), filepath.Join(dir, "output"))
}

func TestFillSinglePerson(t *testing.T) {
	f := newTestFiller(t)

	name, err := f.Fill(context.Background(), "excel-info.xlsx", []PersonData{
		{ID: "1", Doc: testDoc("李四", "研发部")},
	})
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if name != "excel-info-1.xlsx" {
		t.Errorf("output name = %q, want excel-info-1.xlsx", name)
	}

	data, err := os.ReadFile(filepath.Join(f.outputDir, name))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, want := range []string{"姓名: 李四", "部门: 研发部", "2023年度: 优秀"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{{") {
		t.Errorf("output still has placeholders:\n%s", got)
	}
}

func TestFillWordTemplate(t *testing.T) {
	f := newTestFiller(t)

	name, err := f.Fill(context.Background(), "word-info.docx", []PersonData{
		{ID: "2", Doc: testDoc("张三", "后勤部")},
	})
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if name != "word-info-2.docx" {
		t.Errorf("output name = %q, want word-info-2.docx", name)
	}
}

func TestFillBatchProducesZip(t *testing.T) {
	f := newTestFiller(t)

	name, err := f.Fill(context.Background(), "excel-info.xlsx", []PersonData{
		{ID: "1", Doc: testDoc("李四", "研发部")},
		{ID: "2", Doc: testDoc("张三", "后勤部")},
		{ID: "3", Doc: testDoc("王五", "财务部")},
	})
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if !strings.HasPrefix(name, "batch_output_") || !strings.HasSuffix(name, ".zip") {
		t.Fatalf("batch output name = %q, want batch_output_*.zip", name)
	}

	zr, err := zip.OpenReader(filepath.Join(f.outputDir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Errorf("zip entries = %d, want 3", len(zr.File))
	}
	entries := map[string]bool{}
	for _, zf := range zr.File {
		entries[zf.Name] = true
	}
	for _, want := range []string{"excel-info-1.xlsx", "excel-info-2.xlsx", "excel-info-3.xlsx"} {
		if !entries[want] {
			t.Errorf("zip missing entry %s", want)
		}
	}
}

func TestFillInvalidTableType(t *testing.T) {
	f := newTestFiller(t)

	_, err := f.Fill(context.Background(), "pdf-info.pdf", []PersonData{{ID: "1", Doc: testDoc("李四", "研发部")}})
	if !errors.Is(err, ErrInvalidTableType) {
		t.Errorf("error = %v, want ErrInvalidTableType", err)
	}
}

func TestFillTemplateNotFound(t *testing.T) {
	f := newTestFiller(t)

	_, err := f.Fill(context.Background(), "excel-missing.xlsx", []PersonData{{ID: "1", Doc: testDoc("李四", "研发部")}})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestFillNoPersons(t *testing.T) {
	f := newTestFiller(t)

	_, err := f.Fill(context.Background(), "excel-info.xlsx", nil)
	if !errors.Is(err, ErrNoPersons) {
		t.Errorf("error = %v, want ErrNoPersons", err)
	}
}

func TestSubstituteLeavesUnknownPlaceholders(t *testing.T) {
	out := substitute([]byte("a={{a}} b={{b}}"), map[string]string{"a": "1"})
	if string(out) != "a=1 b={{b}}" {
		t.Errorf("substitute() = %q", out)
	}
}
