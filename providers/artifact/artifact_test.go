package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSafeName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"report", "report.txt"},
		{"report.md", "report.md"},
		{"../../etc/passwd", "passwd.txt"},
		{`..\windows\win.ini`, "win.ini"},
		{"季度报告", "季度报告.txt"},
		{"a/b:c?.txt", "b_c_.txt"},
	}
	for _, tc := range cases {
		got, err := SafeName(tc.input, ".txt")
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	_, err := SafeName("..", ".txt")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStore_SaveText(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "docs"))
	require.NoError(t, err)

	artifact, err := store.SaveText(context.Background(), "", "hello")
	require.NoError(t, err)

	assert.Equal(t, DefaultName, artifact.Name)
	assert.Equal(t, "txt", artifact.Format)
	assert.EqualValues(t, 5, artifact.Size)

	content, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestStore_SaveChartWritesTable(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	chart := Chart{
		Type:   "line",
		Title:  "Price trend",
		Labels: []string{"2024-03-14", "2024-03-15"},
		Datasets: []Dataset{
			{Label: "AAPL", Data: []any{171.5, 172.25}},
			{Label: "MSFT", Data: []any{410.0}},
		},
	}
	artifact, err := store.SaveChart(context.Background(), "prices.xlsx", chart)
	require.NoError(t, err)
	assert.Equal(t, "prices.xlsx", artifact.Name)

	workbook, err := excelize.OpenFile(artifact.Path)
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Price trend")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"label", "AAPL", "MSFT"}, rows[0])
	assert.Equal(t, []string{"2024-03-14", "171.5", "410"}, rows[1])
	assert.Equal(t, "172.25", rows[2][1])
}

func TestStore_CanceledContext(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.SaveText(ctx, "x", "y")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "data", sheetName(""))
	assert.Equal(t, "a_b", sheetName("a/b"))
	assert.Len(t, []rune(sheetName("a very long chart title that exceeds the limit")), 31)
}
