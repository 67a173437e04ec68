package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/schemas"
	"github.com/jonathan/police-terminal/internal/types"
)

const snapshotKeyPrefix = "FSpanel_snapshot_"

// SnapshotKey returns the storage key for a domain's snapshot.
func SnapshotKey(domain types.Domain) string {
	return snapshotKeyPrefix + string(domain)
}

// Snapshots reads and writes the last merged record set per domain.
type Snapshots struct {
	kv     KV
	logger *zap.Logger
}

// NewSnapshots creates a snapshot store over kv.
func NewSnapshots(kv KV, logger *zap.Logger) *Snapshots {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshots{kv: kv, logger: logger}
}

// Save replaces the domain's snapshot with records.
func (s *Snapshots) Save(ctx context.Context, domain types.Domain, records []types.PersonRecord) error {
	if records == nil {
		records = []types.PersonRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", domain, err)
	}
	return s.kv.Set(ctx, SnapshotKey(domain), string(data))
}

// Load returns the domain's snapshot. Absent, empty, unparsable and
// schema-invalid values all read as no data; only store failures are errors.
func (s *Snapshots) Load(ctx context.Context, domain types.Domain) ([]types.PersonRecord, bool, error) {
	raw, ok, err := s.kv.Get(ctx, SnapshotKey(domain))
	if err != nil {
		return nil, false, err
	}
	if !ok || raw == "" {
		return nil, false, nil
	}

	if err := schemas.ValidateSnapshot(raw); err != nil {
		s.logger.Warn("ignoring malformed snapshot",
			zap.String("domain", string(domain)), zap.Error(err))
		return nil, false, nil
	}

	var records []types.PersonRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("ignoring unreadable snapshot",
			zap.String("domain", string(domain)), zap.Error(err))
		return nil, false, nil
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records, true, nil
}
