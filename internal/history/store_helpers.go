package history

import (
	"database/sql"
	"encoding/json"
	"time"
)

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := row.Scan(&run.ID, &startedRaw, &finishedRaw, &run.Outcome, &run.Total, &run.Completed, &run.Failed, &run.OutputDir); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw.String)
	return run, nil
}

func scanItem(row scanner) (ItemRecord, error) {
	var (
		item         ItemRecord
		complete     int
		filename     sql.NullString
		digest       sql.NullString
		errorMessage sql.NullString
		errorKind    sql.NullString
		checks       sql.NullString
		recordedRaw  string
	)
	if err := row.Scan(
		&item.RunID, &item.Position, &item.ItemID, &item.Title, &complete,
		&filename, &digest, &errorMessage, &errorKind,
		&item.Attempts, &item.ContentLength, &checks, &recordedRaw,
	); err != nil {
		return ItemRecord{}, err
	}
	item.Complete = complete != 0
	item.Filename = filename.String
	item.SHA256 = digest.String
	item.ErrorMessage = errorMessage.String
	item.ErrorKind = errorKind.String
	item.RecordedAt = parseTime(recordedRaw)
	if checks.Valid && checks.String != "" {
		if err := json.Unmarshal([]byte(checks.String), &item.Checks); err != nil {
			return ItemRecord{}, err
		}
	}
	return item, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
