package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/goccp"
)

const sampleINI = `
[master]
cro_id = 0x300
dto_id = 0x301
station_address = 0x0037
byte_order = big
default_timeout_ms = 250
daq_list = 0

[element "rpm"]
address = 0x4000AA56
size = 2
signed = false
scale = 0.1
offset = 0.0

[element "coolant_temp"]
address = 0x4000AA60
extension = 1
size = 1
signed = true
byte_order = little
scale = 1.0
offset = -40.0
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "master.ini")
	require.NoError(t, os.WriteFile(path, []byte(sampleINI), 0o644))
	return path
}

func TestLoadMasterSection(t *testing.T) {
	path := writeSample(t)
	m, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 0x300, m.CROId)
	assert.EqualValues(t, 0x301, m.DTOId)
	assert.EqualValues(t, 0x0037, m.StationAddress)
	assert.Equal(t, ccp.BigEndian, m.ByteOrder)
	assert.Equal(t, 250, int(m.DefaultTimeout.Milliseconds()))
}

func TestLoadElements(t *testing.T) {
	path := writeSample(t)
	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Elements, 2)

	byName := make(map[string]int)
	for i, e := range m.Elements {
		byName[e.Name] = i
	}

	rpm := m.Elements[byName["rpm"]]
	assert.EqualValues(t, 0x4000AA56, rpm.Address)
	assert.EqualValues(t, 2, rpm.Size)
	assert.False(t, rpm.Signed)
	assert.Equal(t, ccp.BigEndian, rpm.ByteOrder)
	assert.InDelta(t, 0.1, rpm.Scale, 1e-9)

	temp := m.Elements[byName["coolant_temp"]]
	assert.EqualValues(t, 1, temp.Extension)
	assert.True(t, temp.Signed)
	assert.Equal(t, ccp.LittleEndian, temp.ByteOrder)
	assert.InDelta(t, -40.0, temp.Offset, 1e-9)
}
