package testutil

import (
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/logger"
)

// CodecSuite provides base functionality for file codec tests. Each test
// gets its own directory, which is also the configured temp dir.
type CodecSuite struct {
	suite.Suite
	dir       string
	prev      *config.Settings
	startTime time.Time
}

// SetupTest runs before each test in the suite
func (s *CodecSuite) SetupTest() {
	s.startTime = time.Now()
	s.dir = s.T().TempDir()

	s.prev = config.Current()
	settings := config.Default()
	settings.TempDir = s.dir
	config.SetCurrent(settings)
	TestLogger(s.T())
}

// TearDownTest runs after each test in the suite
func (s *CodecSuite) TearDownTest() {
	config.SetCurrent(s.prev)
	_ = logger.Sync()
	s.T().Logf("codec test completed in %v", time.Since(s.startTime))
}

// Dir returns the per-test directory
func (s *CodecSuite) Dir() string {
	return s.dir
}

// Path joins name onto the per-test directory
func (s *CodecSuite) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// CreateFile creates a file in the per-test directory with content
func (s *CodecSuite) CreateFile(name string, content []byte) string {
	path := s.Path(name)
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}
