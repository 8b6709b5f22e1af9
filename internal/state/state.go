package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DeliveryRecord records a report successfully delivered to a chat. The
// daemon consults it after restarts so a report day is never sent twice.
type DeliveryRecord struct {
	ChatID     string    `json:"chat_id"`
	ReportDate string    `json:"report_date"` // YYYY-MM-DD, MSK
	ReportID   string    `json:"report_id"`
	SentAt     time.Time `json:"sent_at"`
}

var mu sync.Mutex

const stateFileName = "okk_state.json"

func stateFilePath() string {
	if dir := os.Getenv("OKK_STATE_DIR"); dir != "" {
		return filepath.Join(dir, stateFileName)
	}
	// Prefer a persistent location under /var/lib/okk when possible; fall back to the current
	// working dir to avoid relying on ephemeral temp directories that may be cleared on reboot.
	defaultDir := "/var/lib/okk"
	if err := os.MkdirAll(defaultDir, 0o755); err == nil {
		return filepath.Join(defaultDir, stateFileName)
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, stateFileName)
	}
	return filepath.Join(os.TempDir(), stateFileName)
}

// loadAllUnlocked reads the state file WITHOUT acquiring the package mutex.
// Caller must hold the lock if concurrent access is possible.
func loadAllUnlocked() (map[string]DeliveryRecord, error) {
	p := stateFilePath()
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]DeliveryRecord), nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	out := make(map[string]DeliveryRecord)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return out, nil
}

// saveAllUnlocked writes the state file WITHOUT acquiring the package mutex.
func saveAllUnlocked(m map[string]DeliveryRecord) error {
	p := stateFilePath()
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	if err := os.WriteFile(p, b, 0o640); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// MarkDelivered persists a delivery record keyed by chat id. Holds the package
// mutex for the whole read-modify-write cycle to avoid lost updates.
func MarkDelivered(r DeliveryRecord) error {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return err
	}
	m[r.ChatID] = r
	return saveAllUnlocked(m)
}

// LastDelivery looks up the most recent delivery for a chat.
func LastDelivery(chatID string) (DeliveryRecord, bool, error) {
	mu.Lock()
	defer mu.Unlock()
	m, err := loadAllUnlocked()
	if err != nil {
		return DeliveryRecord{}, false, err
	}
	r, ok := m[chatID]
	return r, ok, nil
}

// WasDelivered reports whether the given report date was already delivered to
// the chat. Read errors are treated as "not delivered" so a corrupt state file
// never silences the daily report.
func WasDelivered(chatID, reportDate string) bool {
	r, ok, err := LastDelivery(chatID)
	if err != nil || !ok {
		return false
	}
	return r.ReportDate == reportDate
}

// AllDeliveries returns all persisted delivery records.
func AllDeliveries() (map[string]DeliveryRecord, error) {
	mu.Lock()
	defer mu.Unlock()
	return loadAllUnlocked()
}
