package conventions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stackup/internal/conventions"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/home/deploy/.stackup/stackup.db", conventions.DBPath("/home/deploy/.stackup"))
	assert.Equal(t, "/home/deploy/.stackup/logs/01H2QWERTYASDFGZXCVBNMLKJH", conventions.RunLogsDir("/home/deploy/.stackup", "01H2QWERTYASDFGZXCVBNMLKJH"))
	assert.Equal(t, "step-16-service-2.log", conventions.ServiceLogFile(16, 2))
}
