// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TestLogDirName = "test-rotate-logs"

func countRotatedLogFiles(testLogDir string, suffix string) int {
	i := 0
	_ = filepath.Walk(testLogDir, func(fname string, fi os.FileInfo, _ error) error {
		if fi != nil && !fi.IsDir() && strings.HasSuffix(fname, suffix) {
			i++
		}
		return nil
	})
	return i
}

func TestSetUp(t *testing.T) {
	os.RemoveAll(TestLogDirName)
	defer os.RemoveAll(TestLogDirName)

	logRotateArgs := &RotateLogArgs{
		RotateLogMaxSize:    1, // 1MB
		RotateLogMaxBackups: 5,
		RotateLogMaxAge:     0,
		RotateLogLocalTime:  true,
		RotateLogCompress:   true,
	}
	logLevel := logrus.InfoLevel.String()

	require.NoError(t, SetUp(logLevel, true, TestLogDirName, nil))

	err := SetUp(logLevel, false, TestLogDirName, nil)
	assert.ErrorContains(t, err, "logRotateArgs is needed when logToStdout is false")

	require.NoError(t, SetUp(logLevel, false, TestLogDirName, logRotateArgs))
	for i := 0; i < 100000; i++ { // total ~9.1MB, enough to force several rotations
		log.L.Infof("test log, now: %s", time.Now().Format("2006-01-02 15:04:05"))
	}
	assert.Equal(t, logRotateArgs.RotateLogMaxBackups, countRotatedLogFiles(TestLogDirName, "log.gz"))
}
