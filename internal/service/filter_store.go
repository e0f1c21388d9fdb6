package service

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/ecotrack-console/internal/models"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// FilterUpdate changes the non-date filters. Nil fields are left as they are.
type FilterUpdate struct {
	Type   *string
	ZoneID *string
	Limit  *int
}

// FilterStore holds the indicator FilterState for the whole process.
type FilterStore struct {
	defaultLimit int
	now          func() time.Time

	mu    sync.RWMutex
	state models.FilterState
}

// NewFilterStore creates a store initialised with the process defaults. now
// must return times in the calendar the quick periods should follow.
func NewFilterStore(defaultLimit int, now func() time.Time) *FilterStore {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if now == nil {
		now = time.Now
	}
	f := &FilterStore{defaultLimit: defaultLimit, now: now}
	f.state = f.defaults()
	return f
}

// Snapshot returns the current filters.
func (f *FilterStore) Snapshot() models.FilterState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Apply updates type, zone and limit. The quick period is unaffected.
func (f *FilterStore) Apply(u FilterUpdate) (models.FilterState, error) {
	if u.Limit != nil && *u.Limit < 1 {
		return f.Snapshot(), appErrors.Clone(appErrors.ErrValidation, "limit must be at least 1")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if u.Type != nil {
		f.state.Type = strings.TrimSpace(*u.Type)
	}
	if u.ZoneID != nil {
		f.state.ZoneID = strings.TrimSpace(*u.ZoneID)
	}
	if u.Limit != nil {
		f.state.Limit = *u.Limit
	}
	return f.state, nil
}

// SetStartDate edits the start date by hand, clearing the quick period.
func (f *FilterStore) SetStartDate(raw string) (models.FilterState, error) {
	return f.setDate(raw, func(s *models.FilterState, v string) { s.StartDate = v })
}

// SetEndDate edits the end date by hand, clearing the quick period.
func (f *FilterStore) SetEndDate(raw string) (models.FilterState, error) {
	return f.setDate(raw, func(s *models.FilterState, v string) { s.EndDate = v })
}

func (f *FilterStore) setDate(raw string, set func(*models.FilterState, string)) (models.FilterState, error) {
	value, err := normalizeDate(raw)
	if err != nil {
		return f.Snapshot(), err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	set(&f.state, value)
	f.state.QuickPeriod = models.PeriodNone
	return f.state, nil
}

// SelectQuickPeriod overwrites both dates with the period's range.
func (f *FilterStore) SelectQuickPeriod(period models.QuickPeriod) (models.FilterState, error) {
	start, end, err := ResolveQuickPeriod(period, f.now())
	if err != nil {
		return f.Snapshot(), appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, err.Error())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.StartDate = start
	f.state.EndDate = end
	f.state.QuickPeriod = period
	return f.state, nil
}

// Reset restores the process defaults.
func (f *FilterStore) Reset() models.FilterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = f.defaults()
	return f.state
}

// defaults is the current month with the default limit and no period selected.
func (f *FilterStore) defaults() models.FilterState {
	start, end, _ := ResolveQuickPeriod(models.PeriodMonth, f.now())
	return models.FilterState{Limit: f.defaultLimit, StartDate: start, EndDate: end}
}

// normalizeDate accepts an empty value (unbounded) or a YYYY-MM-DD date.
func normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(models.DateLayout, raw); err != nil {
		return "", appErrors.Wrap(err, appErrors.CodeValidation, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return raw, nil
}
