package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

var runFolderPattern = regexp.MustCompile(`^run_(\d+)$`)

// SessionManager owns the output folder for one engine run. Artifacts are
// laid out as
//
//	{outputDir}/{YYYY-MM-DD}/run_N/
//
// where run_N increments per engine start within a trading day. A run that
// crosses midnight keeps its run number under the new date folder.
type SessionManager struct {
	outputDir string
	runID     string
	startedAt time.Time

	mu          sync.Mutex
	currentDate string
	runPath     string

	log *logger.Logger
}

// NewSessionManager scans outputDir for today's existing runs, claims the
// next run number and creates the run folder.
func NewSessionManager(outputDir string, log *logger.Logger) (*SessionManager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	now := time.Now()
	date := now.Format("2006-01-02")

	runNumber, err := nextRunNumber(outputDir, date)
	if err != nil {
		return nil, err
	}

	s := &SessionManager{
		outputDir:   outputDir,
		runID:       fmt.Sprintf("run_%d", runNumber),
		startedAt:   now,
		mu:          sync.Mutex{},
		currentDate: date,
		runPath:     "",
		log:         log.Named("session"),
	}

	if err := s.createRunFolder(); err != nil {
		return nil, err
	}

	s.log.Info("session folder created",
		zap.String("run_id", s.runID),
		zap.String("date", s.currentDate),
		zap.String("path", s.runPath))

	return s, nil
}

func nextRunNumber(outputDir, date string) (int, error) {
	datePath := filepath.Join(outputDir, date)

	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return 1, nil
	}

	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to scan session folder", err)
	}

	maxRun := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runFolderPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		if num, err := strconv.Atoi(matches[1]); err == nil && num > maxRun {
			maxRun = num
		}
	}

	return maxRun + 1, nil
}

func (s *SessionManager) createRunFolder() error {
	s.runPath = filepath.Join(s.outputDir, s.currentDate, s.runID)

	if err := os.MkdirAll(s.runPath, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to create run folder", err)
	}

	return nil
}

// RollDate switches the session to a new date folder when the given
// timestamp has crossed midnight, keeping the run number. It reports
// whether a new folder was created.
func (s *SessionManager) RollDate(timestamp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := timestamp.Format("2006-01-02")
	if date == s.currentDate {
		return false, nil
	}

	previous := s.currentDate
	s.currentDate = date

	if err := s.createRunFolder(); err != nil {
		return false, err
	}

	s.log.Info("session rolled to new date folder",
		zap.String("previous_date", previous),
		zap.String("date", date),
		zap.String("run_id", s.runID))

	return true, nil
}

// RunID returns the session's run identifier, e.g. "run_3".
func (s *SessionManager) RunID() string {
	return s.runID
}

// StartedAt returns when the session began.
func (s *SessionManager) StartedAt() time.Time {
	return s.startedAt
}

// RunPath returns the current run folder.
func (s *SessionManager) RunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runPath
}

// FilePath returns the full path for an artifact inside the run folder.
func (s *SessionManager) FilePath(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Join(s.runPath, filename)
}

// RunsForDate lists the run folders recorded under one date, ordered by run
// number.
func (s *SessionManager) RunsForDate(date string) ([]string, error) {
	datePath := filepath.Join(s.outputDir, date)

	entries, err := os.ReadDir(datePath)
	if os.IsNotExist(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalInitFailed, "failed to read date folder", err)
	}

	var runs []string

	for _, entry := range entries {
		if entry.IsDir() && runFolderPattern.MatchString(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		numI, _ := strconv.Atoi(runs[i][len("run_"):])
		numJ, _ := strconv.Atoi(runs[j][len("run_"):])

		return numI < numJ
	})

	return runs, nil
}
