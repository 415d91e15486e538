package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"studysched/internal/plans"
	"studysched/internal/schedules"
	logx "studysched/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.plans.json           (snapshot, rewritten on change)
//   - <prefix>.activities.json      (snapshot, rewritten on change)
//   - <prefix>.events.snapshot.json (periodic snapshot)
//   - <prefix>.events.journal.jsonl (append-only journal)
//
// Events are append-heavy, so they run through a journal that is compacted
// into the snapshot every eventCompactEvery writes.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	plansPath         string
	activitiesPath    string
	eventSnapshotPath string
	eventJournalPath  string

	eventJournal *os.File
	eventWrites  int

	plans      map[string]map[string]*plans.SchedulePlan          // studyID -> guid
	events     map[string]map[string]int64                        // healthCode -> eventID -> unix milli
	activities map[string]map[string]*schedules.ScheduledActivity // healthCode -> guid
}

const eventCompactEvery = 500

type eventRecord struct {
	HealthCode string `json:"hc"`
	EventID    string `json:"id"`
	TS         int64  `json:"ts"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:               log,
		plansPath:         prefix + ".plans.json",
		activitiesPath:    prefix + ".activities.json",
		eventSnapshotPath: prefix + ".events.snapshot.json",
		eventJournalPath:  prefix + ".events.journal.jsonl",
		plans:             map[string]map[string]*plans.SchedulePlan{},
		events:            map[string]map[string]int64{},
		activities:        map[string]map[string]*schedules.ScheduledActivity{},
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	jf, err := os.OpenFile(s.eventJournalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.eventJournal = jf
	return s, nil
}

func (s *fileStore) load() error {
	if err := readJSONFile(s.plansPath, &s.plans); err != nil {
		return err
	}
	if err := readJSONFile(s.activitiesPath, &s.activities); err != nil {
		return err
	}
	if err := readJSONFile(s.eventSnapshotPath, &s.events); err != nil {
		return err
	}
	// Replay the journal over the snapshot; later entries win.
	f, err := os.Open(s.eventJournalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec eventRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// A torn tail write is expected after a crash; skip it.
			s.log.Warn("skipping bad event journal line", logx.Err(err))
			continue
		}
		s.setEventLocked(rec.HealthCode, rec.EventID, rec.TS)
	}
	return sc.Err()
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventJournal != nil {
		err := s.eventJournal.Close()
		s.eventJournal = nil
		return err
	}
	return nil
}

// ---- plans ----

func (s *fileStore) SavePlan(ctx context.Context, p *plans.SchedulePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGUID := s.plans[p.StudyID]
	if byGUID == nil {
		byGUID = map[string]*plans.SchedulePlan{}
		s.plans[p.StudyID] = byGUID
	}
	byGUID[p.GUID] = p
	return writeJSONFile(s.plansPath, s.plans)
}

func (s *fileStore) Plans(ctx context.Context, studyID string) ([]*plans.SchedulePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGUID := s.plans[studyID]
	out := make([]*plans.SchedulePlan, 0, len(byGUID))
	for _, p := range byGUID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GUID < out[j].GUID })
	return out, nil
}

func (s *fileStore) DeletePlan(ctx context.Context, studyID, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGUID := s.plans[studyID]
	if _, ok := byGUID[guid]; !ok {
		return ErrNotFound
	}
	delete(byGUID, guid)
	return writeJSONFile(s.plansPath, s.plans)
}

// ---- events ----

func (s *fileStore) setEventLocked(healthCode, eventID string, ms int64) {
	byID := s.events[healthCode]
	if byID == nil {
		byID = map[string]int64{}
		s.events[healthCode] = byID
	}
	byID[eventID] = ms
}

func (s *fileStore) RecordEvent(ctx context.Context, healthCode, eventID string, ts time.Time) error {
	if healthCode == "" || eventID == "" {
		return errors.New("storage: health code and event id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := ts.UnixMilli()
	s.setEventLocked(healthCode, eventID, ms)

	b, err := json.Marshal(eventRecord{HealthCode: healthCode, EventID: eventID, TS: ms})
	if err != nil {
		return err
	}
	if _, err := s.eventJournal.Write(append(b, '\n')); err != nil {
		return err
	}
	s.eventWrites++
	if s.eventWrites%eventCompactEvery == 0 {
		if err := s.compactEventsLocked(); err != nil {
			s.log.Warn("event journal compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactEventsLocked() error {
	if err := writeJSONFile(s.eventSnapshotPath, s.events); err != nil {
		return err
	}
	if err := s.eventJournal.Close(); err != nil {
		return err
	}
	jf, err := os.OpenFile(s.eventJournalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	s.eventJournal = jf
	return nil
}

func (s *fileStore) Events(ctx context.Context, healthCode string) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.events[healthCode]
	out := make(map[string]time.Time, len(byID))
	for id, ms := range byID {
		out[id] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

// ---- activities ----

func (s *fileStore) SaveActivities(ctx context.Context, acts []*schedules.ScheduledActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range acts {
		byGUID := s.activities[a.HealthCode]
		if byGUID == nil {
			byGUID = map[string]*schedules.ScheduledActivity{}
			s.activities[a.HealthCode] = byGUID
		}
		cp := *a
		// Participant actions on an existing row survive regeneration.
		if prev, ok := byGUID[a.GUID]; ok {
			cp.StartedOn = prev.StartedOn
			cp.FinishedOn = prev.FinishedOn
			cp.HidesOn = prev.HidesOn
		}
		byGUID[a.GUID] = &cp
	}
	return writeJSONFile(s.activitiesPath, s.activities)
}

func (s *fileStore) Activities(ctx context.Context, healthCode string) ([]*schedules.ScheduledActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGUID := s.activities[healthCode]
	out := make([]*schedules.ScheduledActivity, 0, len(byGUID))
	for _, a := range byGUID {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledOn.Equal(out[j].ScheduledOn) {
			return out[i].ScheduledOn.Before(out[j].ScheduledOn)
		}
		return out[i].GUID < out[j].GUID
	})
	return out, nil
}

func (s *fileStore) UpdateActivity(ctx context.Context, healthCode, guid string, startedOn, finishedOn int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[healthCode][guid]
	if !ok {
		return ErrNotFound
	}
	if startedOn != 0 {
		a.StartedOn = startedOn
	}
	if finishedOn != 0 {
		a.FinishedOn = finishedOn
	}
	return writeJSONFile(s.activitiesPath, s.activities)
}
