package detections_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/detections"
	"folio/internal/domain"
)

const jsonDoc = `{
  "source_path": "/data/paper.pdf",
  "detection_dpi": 200,
  "pages": [
    {"width": 612, "height": 792, "detections": [{"bbox": [100, 100, 500, 200], "label": "Text", "score": 0.9}]},
    {"width": 612, "height": 792, "detection_dpi": 300, "detections": []}
  ]
}`

const yamlDoc = `
source_path: /data/paper.pdf
detection_dpi: 200
pages:
  - index: 3
    width: 612
    height: 792
    detections:
      - bbox: [10, 10, 200, 200]
        label: Figure
        score: 0.8
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	doc, err := detections.Load(writeFile(t, "det.json", jsonDoc))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 0, doc.Pages[0].Index)
	assert.Equal(t, 1, doc.Pages[1].Index)
	assert.Equal(t, 200, doc.Pages[0].DetectionDPI)
	assert.Equal(t, 300, doc.Pages[1].DetectionDPI)
	assert.Equal(t, []float64{100, 100, 500, 200}, doc.Pages[0].Detections[0].BBox)
}

func TestLoad_YAML(t *testing.T) {
	doc, err := detections.Load(writeFile(t, "det.yml", yamlDoc))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 3, doc.Pages[0].Index)
	assert.Equal(t, 200, doc.Pages[0].DetectionDPI)
	assert.Equal(t, "Figure", doc.Pages[0].Detections[0].Label)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := detections.Decode([]byte(`{"pages": []}`), detections.FormatJSON)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = detections.Decode([]byte(`{"pages": [{"width": 0, "height": 792}]}`), detections.FormatJSON)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = detections.Decode([]byte(`{"pagez": []}`), detections.FormatJSON)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = detections.Decode([]byte("pages: [oops"), detections.FormatYAML)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_Missing(t *testing.T) {
	_, err := detections.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestResolveImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_0001.png"), []byte("png"), 0o600))

	doc := &domain.DocumentInput{Pages: []domain.PageInput{{Index: 0}, {Index: 1}}}
	detections.ResolveImages(doc, dir, 150)

	assert.Empty(t, doc.Pages[0].ImagePath)
	assert.Equal(t, filepath.Join(dir, "page_0001.png"), doc.Pages[1].ImagePath)
	assert.Equal(t, 150, doc.Pages[1].ImageDPI)
}
