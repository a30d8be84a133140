package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.String(), "batchsql version "+Version)
	assert.Contains(t, info.FullString(), "Git Commit: "+GitCommit)
}

func TestFullStringWithoutDrivers(t *testing.T) {
	info := Info{Version: "1.0.0"}
	assert.Contains(t, info.FullString(), "Drivers: none")

	info.Drivers = []string{"sqlite3", "sqlserver"}
	assert.Contains(t, info.FullString(), "Drivers: sqlite3, sqlserver")
}
