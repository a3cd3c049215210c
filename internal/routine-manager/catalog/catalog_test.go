package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-routine-service/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 6, c.Len())
	assert.Equal(t, 2, c.CountByPeriod(models.PeriodMorning))
	assert.Equal(t, 4, c.CountByPeriod(models.PeriodEvening))

	wash, ok := c.Lookup("wash-hands")
	require.True(t, ok)
	assert.Equal(t, "07:00", wash.StartTime.String())
	assert.Equal(t, "07:30", wash.EndTime.String())
	assert.Equal(t, models.PeriodMorning, wash.Period)
	assert.Equal(t, "wash-hands", c.Tasks()[0].ID)
}

func TestTasksReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	tasks := c.Tasks()
	tasks[0].Name = "changed"
	assert.NotEqual(t, "changed", c.Tasks()[0].Name)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{"tasks":[{"id":"wash","name":"Wash","startTime":"07:00","endTime":"07:30","period":"morning"}]}`)
	c, err := Parse(data, ".json")
	require.NoError(t, err)
	assert.True(t, c.Contains("wash"))
	assert.False(t, c.Contains("dry"))
}

func TestParse_Rejects(t *testing.T) {
	testCases := map[string]string{
		"bad period":    `{"tasks":[{"id":"a","name":"A","startTime":"07:00","endTime":"07:30","period":"noon"}]}`,
		"bad time":      `{"tasks":[{"id":"a","name":"A","startTime":"7:00","endTime":"07:30","period":"morning"}]}`,
		"missing id":    `{"tasks":[{"name":"A","startTime":"07:00","endTime":"07:30","period":"morning"}]}`,
		"reversed":      `{"tasks":[{"id":"a","name":"A","startTime":"23:00","endTime":"01:00","period":"evening"}]}`,
		"duplicate ids": `{"tasks":[{"id":"a","name":"A","startTime":"07:00","endTime":"07:30","period":"morning"},{"id":"a","name":"B","startTime":"08:00","endTime":"08:30","period":"morning"}]}`,
		"empty":         `{"tasks":[]}`,
		"not an object": `[1,2,3]`,
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data), ".json")
			assert.Error(t, err)
		})
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("x"), ".toml")
	assert.Error(t, err)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")
	content := "tasks:\n  - id: story\n    name: Story time\n    startTime: \"19:00\"\n    endTime: \"20:30\"\n    period: evening\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	d, ok := c.Lookup("story")
	require.True(t, ok)
	assert.Equal(t, models.MustTimeOfDay("19:00"), d.StartTime)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesEmbedded(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.Contains("brush-teeth-evening"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
