package drawio

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// LayoutConfig controls where generated table shapes are placed. Zero values
// fall back to the defaults, so a partial config file only overrides what it
// names.
type LayoutConfig struct {
	PerRow         int `yaml:"per_row"` // tables per row, 0 = auto
	TableWidth     int `yaml:"table_width"`
	RowHeight      int `yaml:"row_height"`
	HeaderHeight   int `yaml:"header_height"`
	PaddingX       int `yaml:"padding_x"`
	PaddingY       int `yaml:"padding_y"`
	GapX           int `yaml:"gap_x"`
	GapY           int `yaml:"gap_y"`
	NoteMargin     int `yaml:"note_margin"`
	NoteLineHeight int `yaml:"note_line_height"`
}

// DefaultLayout returns the standard grid geometry.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		TableWidth:     340,
		RowHeight:      30,
		HeaderHeight:   30,
		PaddingX:       120,
		PaddingY:       60,
		GapX:           140,
		GapY:           120,
		NoteMargin:     12,
		NoteLineHeight: 16,
	}
}

// LoadLayout reads a YAML layout config, filling unset fields from the
// defaults.
func LoadLayout(path string) (LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LayoutConfig{}, fmt.Errorf("reading layout config: %w", err)
	}
	cfg := LayoutConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return LayoutConfig{}, fmt.Errorf("unmarshalling layout config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *LayoutConfig) applyDefaults() {
	d := DefaultLayout()
	if c.TableWidth <= 0 {
		c.TableWidth = d.TableWidth
	}
	if c.RowHeight <= 0 {
		c.RowHeight = d.RowHeight
	}
	if c.HeaderHeight <= 0 {
		c.HeaderHeight = d.HeaderHeight
	}
	if c.PaddingX <= 0 {
		c.PaddingX = d.PaddingX
	}
	if c.PaddingY <= 0 {
		c.PaddingY = d.PaddingY
	}
	if c.GapX <= 0 {
		c.GapX = d.GapX
	}
	if c.GapY <= 0 {
		c.GapY = d.GapY
	}
	if c.NoteMargin <= 0 {
		c.NoteMargin = d.NoteMargin
	}
	if c.NoteLineHeight <= 0 {
		c.NoteLineHeight = d.NoteLineHeight
	}
}

// perRow returns the configured tables-per-row, or a square-ish grid when
// unset.
func (c LayoutConfig) perRow(tableCount int) int {
	if c.PerRow > 0 {
		return c.PerRow
	}
	if tableCount <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(tableCount))))
}

func (c LayoutConfig) tableHeight(columnCount int) int {
	rows := columnCount
	if rows < 1 {
		rows = 1
	}
	return c.HeaderHeight + rows*c.RowHeight
}

func (c LayoutConfig) noteHeight(lineCount int) int {
	if lineCount == 0 {
		return 0
	}
	return c.NoteMargin + lineCount*c.NoteLineHeight
}
