package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gopkg.in/yaml.v3"

	"daily-routine-service/internal/models"
	"daily-routine-service/pkg/validation"
)

//go:embed tasks.yaml
var defaultCatalogYAML []byte

const catalogSchemaJSON = `{
	"type": "object",
	"required": ["tasks"],
	"properties": {
		"tasks": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name", "startTime", "endTime", "period"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"startTime": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
					"endTime": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
					"period": {"enum": ["morning", "evening"]},
					"asset": {"type": "string"}
				}
			}
		}
	}
}`

var catalogSchema = validation.MustCompile("catalog.json", catalogSchemaJSON)

type fileEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Period      string `json:"period"`
	Asset       string `json:"asset"`
}

type file struct {
	Tasks []fileEntry `json:"tasks"`
}

// Catalog is the ordered, immutable list of routine tasks.
type Catalog struct {
	tasks []models.TaskDefinition
	index map[string]int
}

// New validates defs (unique ids, start <= end, known period) and keeps their order.
func New(defs []models.TaskDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	c := &Catalog{
		tasks: make([]models.TaskDefinition, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	copy(c.tasks, defs)
	for i, d := range c.tasks {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", d.ID)
		}
		if d.StartTime > d.EndTime {
			return nil, fmt.Errorf("task %q: window %s-%s crosses midnight or is reversed", d.ID, d.StartTime, d.EndTime)
		}
		if !d.Period.Valid() {
			return nil, fmt.Errorf("task %q: unknown period %q", d.ID, d.Period)
		}
		c.index[d.ID] = i
	}
	return c, nil
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML, ".yaml")
}

// Load returns the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// LoadFile reads a catalog from a .yaml/.yml or .json file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	hlog.Infof("Loaded %d routine tasks from %s", c.Len(), path)
	return c, nil
}

// Parse decodes and validates catalog data; ext selects the format.
func Parse(data []byte, ext string) (*Catalog, error) {
	var jsonData []byte
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		jsonData = b
	case ".json":
		jsonData = data
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}

	if err := catalogSchema.ValidateJSON(jsonData); err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(jsonData, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	defs := make([]models.TaskDefinition, 0, len(f.Tasks))
	for _, e := range f.Tasks {
		start, err := models.ParseTimeOfDay(e.StartTime)
		if err != nil {
			return nil, fmt.Errorf("task %q startTime: %w", e.ID, err)
		}
		end, err := models.ParseTimeOfDay(e.EndTime)
		if err != nil {
			return nil, fmt.Errorf("task %q endTime: %w", e.ID, err)
		}
		defs = append(defs, models.TaskDefinition{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			StartTime:   start,
			EndTime:     end,
			Period:      models.Period(e.Period),
			Asset:       e.Asset,
		})
	}
	return New(defs)
}

// Tasks returns a copy of the definitions in catalog order.
func (c *Catalog) Tasks() []models.TaskDefinition {
	out := make([]models.TaskDefinition, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Catalog) Len() int { return len(c.tasks) }

func (c *Catalog) Lookup(id string) (models.TaskDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.TaskDefinition{}, false
	}
	return c.tasks[i], true
}

func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// CountByPeriod returns how many catalog tasks belong to p.
func (c *Catalog) CountByPeriod(p models.Period) int {
	n := 0
	for _, d := range c.tasks {
		if d.Period == p {
			n++
		}
	}
	return n
}
