package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
)

//Record statuses
const (
	StatusAnalyzed    = "analyzed"
	StatusFailed      = "failed"
	StatusWriteFailed = "write_failed"
)

//Backends selectable from configuration
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

//Record is one uploaded match and its analysis outcome
type Record struct {
	MatchID    string                    `json:"match_id"`
	VideoPath  string                    `json:"video_path"`
	Filename   string                    `json:"filename"`
	UploadTime time.Time                 `json:"upload_time"`
	TeamConfig json.RawMessage           `json:"team_config"`
	Status     string                    `json:"status"`
	Message    string                    `json:"message"`
	ResultPath string                    `json:"result_path,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Faults     []analysis.DetectionFault `json:"detection_faults,omitempty"`
	Results    *analysis.AnalysisResult  `json:"results"`
}

//Store keeps analysis records by match ID. Implementations must be safe for concurrent use.
type Store interface {
	//Put saves a record, replacing any record with the same MatchID
	Put(rec *Record) error

	//Get returns the record with given ID, or nil if there is none
	Get(id string) (*Record, error)

	//List returns all records, oldest first
	List() ([]*Record, error)

	//Count returns how many records are kept
	Count() (int, error)

	Close() error
}

//Config selects a store backend and its retention
type Config struct {
	Backend string
	//MaxRecords caps the memory backend, oldest records are evicted first. 0 keeps everything.
	MaxRecords int
	SQLitePath string
}

//Open returns the store described by cfg
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.MaxRecords), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("store: unsupported backend '%s'", cfg.Backend)
	}
}
