package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/features"
)

// Timestamp layouts used in the CSV tables.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// Column sets of the exported tables.
var (
	CallColumns = []string{
		"call_id", "caller_id", "callee_id", "call_start_ts", "call_end_ts", "call_duration",
		"first_cell_id", "last_cell_id", "caller_imei", "caller_imsi", "callee_imsi",
		"is_anomaly", "anomaly_type",
	}
	UserColumns = []string{
		"user_id", "phone_number", "imei", "imsi", "home_cell_id", "user_type", "creation_date", "call_pattern",
	}
	TowerColumns     = []string{"cell_id", "latitude", "longitude", "area_type", "tower_type"}
	CommunityColumns = []string{"user_id", "community_type", "community_id", "community_size"}
	FeatureColumns   = []string{
		"user_id", "user_type", "call_pattern", "outgoing_calls", "incoming_calls", "unique_callees",
		"total_duration", "mean_duration", "std_duration", "min_duration", "max_duration",
		"night_call_ratio", "weekend_call_ratio", "short_call_ratio", "anomalous_calls", "is_anomalous_user",
	}
)

// ErrBadHeader is returned when a table does not start with the expected columns.
var ErrBadHeader = errors.New("unexpected csv header")

// WriteCalls writes the call table.
func WriteCalls(w io.Writer, records []domain.CallRecord) error {
	return writeTable(w, CallColumns, len(records), func(i int) []string {
		r := records[i]
		return []string{
			r.CallID,
			r.CallerID,
			r.CalleeID,
			r.Start.Format(TimestampLayout),
			r.End.Format(TimestampLayout),
			strconv.Itoa(r.DurationSeconds),
			r.FirstCellID,
			r.LastCellID,
			r.CallerIMEI,
			r.CallerIMSI,
			r.CalleeIMSI,
			formatFlag(r.IsAnomaly),
			string(r.AnomalyType),
		}
	})
}

// WriteUsers writes the user profile table.
func WriteUsers(w io.Writer, users []domain.User) error {
	return writeTable(w, UserColumns, len(users), func(i int) []string {
		u := users[i]
		return []string{
			u.ID,
			u.PhoneNumber,
			u.IMEI,
			u.IMSI,
			u.HomeCellID,
			string(u.UserType),
			u.CreationDate.Format(DateLayout),
			string(u.CallPattern),
		}
	})
}

// WriteTowers writes the cell tower table.
func WriteTowers(w io.Writer, towers []domain.CellTower) error {
	return writeTable(w, TowerColumns, len(towers), func(i int) []string {
		t := towers[i]
		return []string{t.ID, formatFloat(t.Latitude), formatFloat(t.Longitude), t.AreaType, t.TowerType}
	})
}

// WriteCommunities writes one row per community membership.
func WriteCommunities(w io.Writer, communities []domain.Community) error {
	type membership struct {
		user string
		c    domain.Community
	}
	var rows []membership
	for _, c := range communities {
		for _, m := range c.Members {
			rows = append(rows, membership{user: m, c: c})
		}
	}
	return writeTable(w, CommunityColumns, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.user, r.c.Kind.TableName(), r.c.ID, strconv.Itoa(r.c.Size())}
	})
}

// WriteFeatures writes the per-user feature table.
func WriteFeatures(w io.Writer, rows []features.UserFeatures) error {
	return writeTable(w, FeatureColumns, len(rows), func(i int) []string {
		f := rows[i]
		return []string{
			f.UserID,
			string(f.UserType),
			string(f.CallPattern),
			strconv.Itoa(f.OutgoingCalls),
			strconv.Itoa(f.IncomingCalls),
			strconv.Itoa(f.UniqueCallees),
			strconv.Itoa(f.TotalDuration),
			formatFloat(f.MeanDuration),
			formatFloat(f.StdDuration),
			strconv.Itoa(f.MinDuration),
			strconv.Itoa(f.MaxDuration),
			formatFloat(f.NightCallRatio),
			formatFloat(f.WeekendCallRatio),
			formatFloat(f.ShortCallRatio),
			strconv.Itoa(f.AnomalousCalls),
			formatFlag(f.IsAnomalousUser),
		}
	})
}

func writeTable(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCalls reads a call table written by WriteCalls.
func ReadCalls(path string) ([]domain.CallRecord, error) {
	var out []domain.CallRecord
	err := readTable(path, CallColumns, func(rec []string) error {
		start, err := parseTimestamp(rec[3])
		if err != nil {
			return err
		}
		end, err := parseTimestamp(rec[4])
		if err != nil {
			return err
		}
		duration, err := strconv.Atoi(rec[5])
		if err != nil {
			return fmt.Errorf("call_duration: %w", err)
		}
		isAnomaly, err := parseFlag(rec[11])
		if err != nil {
			return err
		}
		out = append(out, domain.CallRecord{
			CallID:          rec[0],
			CallerID:        rec[1],
			CalleeID:        rec[2],
			Start:           start,
			End:             end,
			DurationSeconds: duration,
			FirstCellID:     rec[6],
			LastCellID:      rec[7],
			CallerIMEI:      rec[8],
			CallerIMSI:      rec[9],
			CalleeIMSI:      rec[10],
			IsAnomaly:       isAnomaly,
			AnomalyType:     domain.AnomalyType(rec[12]),
		})
		return nil
	})
	return out, err
}

// ReadUsers reads a user profile table written by WriteUsers.
func ReadUsers(path string) ([]domain.User, error) {
	var out []domain.User
	err := readTable(path, UserColumns, func(rec []string) error {
		created, err := time.ParseInLocation(DateLayout, rec[6], time.UTC)
		if err != nil {
			return fmt.Errorf("creation_date: %w", err)
		}
		out = append(out, domain.User{
			ID:           rec[0],
			PhoneNumber:  rec[1],
			IMEI:         rec[2],
			IMSI:         rec[3],
			HomeCellID:   rec[4],
			UserType:     domain.UserType(rec[5]),
			CreationDate: created,
			CallPattern:  domain.CallPattern(rec[7]),
		})
		return nil
	})
	return out, err
}

// ReadTowers reads a cell tower table written by WriteTowers.
func ReadTowers(path string) ([]domain.CellTower, error) {
	var out []domain.CellTower
	err := readTable(path, TowerColumns, func(rec []string) error {
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}
		out = append(out, domain.CellTower{ID: rec[0], Latitude: lat, Longitude: lon, AreaType: rec[3], TowerType: rec[4]})
		return nil
	})
	return out, err
}

// ReadCommunities rebuilds communities from a membership table, in first-seen order.
func ReadCommunities(path string) ([]domain.Community, error) {
	var out []domain.Community
	pos := make(map[string]int)
	err := readTable(path, CommunityColumns, func(rec []string) error {
		kind, ok := domain.CommunityKindFromTable(rec[1])
		if !ok {
			return fmt.Errorf("unknown community type %q", rec[1])
		}
		i, seen := pos[rec[2]]
		if !seen {
			i = len(out)
			pos[rec[2]] = i
			out = append(out, domain.Community{ID: rec[2], Kind: kind})
		}
		out[i].Members = append(out[i].Members, rec[0])
		return nil
	})
	return out, err
}

func readTable(path string, header []string, row func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	r.ReuseRecord = true

	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	for i, col := range header {
		if got[i] != col {
			return fmt.Errorf("%s: column %d is %q, want %q: %w", path, i, got[i], col, ErrBadHeader)
		}
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

func parseTimestamp(v string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", v, err)
	}
	return t, nil
}

func formatFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseFlag(v string) (bool, error) {
	switch v {
	case "1", "true", "True":
		return true, nil
	case "0", "false", "False":
		return false, nil
	default:
		return false, fmt.Errorf("invalid flag %q", v)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
