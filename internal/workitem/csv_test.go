package workitem_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/workitem"
)

func TestParse_DerivesIDs(t *testing.T) {
	t.Parallel()

	input := `href,question,completation_rate,level
https://leetcode.com/problems/two-sum/,1. Two Sum,49.1%,Easy
https://leetcode.com/problems/add-two-numbers/,Add Two Numbers,40.2%,Med.
,Untitled,,Hard
`

	items, err := workitem.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, domain.WorkItem{
		ID:             "1",
		Title:          "Two Sum",
		URL:            "https://leetcode.com/problems/two-sum/",
		Difficulty:     domain.DifficultyEasy,
		AcceptanceRate: "49.1%",
	}, items[0])

	assert.Equal(t, "add-two-numbers", items[1].ID)
	assert.Equal(t, "Add Two Numbers", items[1].Title)
	assert.Equal(t, domain.DifficultyMedium, items[1].Difficulty)

	assert.Equal(t, "3", items[2].ID)
	assert.Equal(t, domain.DifficultyHard, items[2].Difficulty)
	assert.Empty(t, items[2].AcceptanceRate)
}

func TestParse_AlternateColumnsAndTags(t *testing.T) {
	t.Parallel()

	input := "\ufeffLevel,Question,Href,Completion_Rate,Tags\n" +
		"Hard,4. Median of Two Sorted Arrays,https://leetcode.com/problems/median-of-two-sorted-arrays/,38%,Array; Binary Search|Divide and Conquer\n" +
		"\n"

	items, err := workitem.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "4", items[0].ID)
	assert.Equal(t, "38%", items[0].AcceptanceRate)
	assert.Equal(t, []string{"Array", "Binary Search", "Divide and Conquer"}, items[0].Tags)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "missing column",
			input: "href,question\nhttps://x/problems/a/,1. A\n",
			want:  workitem.ErrMissingColumn,
		},
		{
			name:  "duplicate id",
			input: "href,question,level\nhttps://x/problems/a/,1. A,Easy\nhttps://x/problems/b/,1. B,Easy\n",
			want:  workitem.ErrDuplicateID,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := workitem.Parse(strings.NewReader(tc.input))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	items, err := workitem.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "problems.csv")
	require.NoError(t, os.WriteFile(path, []byte("href,question,completation_rate,level\nhttps://leetcode.com/problems/two-sum/,1. Two Sum,49%,Easy\n"), 0o600))

	items, err := workitem.LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1. Two Sum", items[0].DisplayTitle())

	_, err = workitem.LoadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
