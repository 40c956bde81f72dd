package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradeSheet() Dataset {
	return Dataset{
		Title:   "CS101 - Lab 1",
		Caption: []string{"Max points: 100"},
		Headers: []string{"Student", "Grade"},
		Rows: []map[string]string{
			{"Student": "Ada Lovelace", "Grade": "95"},
			{"Student": "Grace, Hopper", "Grade": ""},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(gradeSheet())
	require.NoError(t, err)
	body := strings.TrimPrefix(string(out), "\ufeff")
	assert.Equal(t, "Student,Grade\nAda Lovelace,95\n\"Grace, Hopper\",\n", body)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(gradeSheet())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
