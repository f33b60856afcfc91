package matrix_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/kbd-matrix/internal/matrix"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := matrix.DefaultConfig().WithDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.TimestampSlots, "20ms debounce at 5ms needs 4 slots plus 2")
}

func TestRequiredSlots(t *testing.T) {
	tests := []struct {
		down, up, poll time.Duration
		want           int
	}{
		{ms(10), ms(10), ms(1), 12},
		{ms(10), ms(50), ms(1), 52},
		{ms(10), ms(12), ms(5), 5},
		{0, 0, ms(5), 2},
	}
	for _, tt := range tests {
		cfg := matrix.Config{DebounceDown: tt.down, DebounceUp: tt.up, PollPeriod: tt.poll}
		assert.Equal(t, tt.want, cfg.RequiredSlots(), "down=%v up=%v poll=%v", tt.down, tt.up, tt.poll)
	}
}

func TestWithDefaultsKeepsExplicitSlots(t *testing.T) {
	cfg := matrix.Config{TimestampSlots: 64}.WithDefaults()
	assert.Equal(t, 64, cfg.TimestampSlots)
}

func TestConfigRowMask(t *testing.T) {
	assert.Equal(t, matrix.RowMask(0xff), matrix.Config{Rows: 8}.RowMask())
	assert.Equal(t, matrix.RowMask(0b1), matrix.Config{Rows: 1}.RowMask())
	assert.Equal(t, ^matrix.RowMask(0), matrix.Config{Rows: matrix.MaxRows}.RowMask())
}

func TestConfigValidate(t *testing.T) {
	valid := func() matrix.Config {
		return matrix.Config{
			Rows:         4,
			Cols:         4,
			PollPeriod:   ms(1),
			DebounceDown: ms(10),
			DebounceUp:   ms(10),
		}.WithDefaults()
	}

	tests := []struct {
		name   string
		mutate func(*matrix.Config)
	}{
		{"no rows", func(c *matrix.Config) { c.Rows = 0 }},
		{"too many rows", func(c *matrix.Config) { c.Rows = matrix.MaxRows + 1 }},
		{"no cols", func(c *matrix.Config) { c.Cols = 0 }},
		{"zero poll period", func(c *matrix.Config) { c.PollPeriod = 0 }},
		{"negative debounce", func(c *matrix.Config) { c.DebounceUp = -ms(1) }},
		{"negative settle", func(c *matrix.Config) { c.SettleTime = -time.Microsecond }},
		{"ring equal to debounce cycles", func(c *matrix.Config) { c.TimestampSlots = 10 }},
		{"ring of one", func(c *matrix.Config) { c.TimestampSlots = 1 }},
		{"ring equal to rounded-up debounce cycles", func(c *matrix.Config) {
			// 10ms at 3ms spans 4 cycles; a 4 slot ring overwrites the stamp.
			c.PollPeriod = ms(3)
			c.TimestampSlots = 4
		}},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.TimestampSlots = 11
	assert.NoError(t, cfg.Validate(), "one more slot than debounce cycles is enough")
}
