package domain

import "time"

// IngestStats holds statistics about one ingestion run.
type IngestStats struct {
	SourceID  string
	Fetched   int
	New       int
	Skipped   int
	Repaired  int
	Analyzed  int
	Published int
	Errors    int
	Duration  time.Duration
}

// Add merges per-source stats into an aggregate.
func (s *IngestStats) Add(other *IngestStats) {
	s.Fetched += other.Fetched
	s.New += other.New
	s.Skipped += other.Skipped
	s.Repaired += other.Repaired
	s.Analyzed += other.Analyzed
	s.Published += other.Published
	s.Errors += other.Errors
}

// RepairStats holds statistics about one repair sweep.
type RepairStats struct {
	Scanned    int
	Reanalyzed int
	Rescored   int
	StillMock  int
	Duration   time.Duration
}
