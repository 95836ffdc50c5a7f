package ledger

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mizan.org/internal/ids"
)

// ListFilter narrows and paginates entry listings.
type ListFilter struct {
	Business  string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	Search    string
	Page      int
	Limit     int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Page       int     `json:"page"`
}

// Service defines journal entry operations. Validation and derived-total
// recomputation happen inside; callers persist nothing themselves.
type Service interface {
	CreateEntry(ctx context.Context, e Entry) (Entry, error)
	GetEntry(ctx context.Context, id string) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) (Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	TransitionEntry(ctx context.Context, id string, target Status) (Entry, error)
	ListEntries(ctx context.Context, f ListFilter) (ListResult, error)

	// HighestPieceSequence reports the highest sequence already issued for a
	// fiscal year, 0 when the year has no entries.
	HighestPieceSequence(ctx context.Context, year int) (int, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty journal.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*Entry)}
}

func (s *InMemory) CreateEntry(ctx context.Context, e Entry) (Entry, error) {
	if err := ValidatePostings(e.Postings); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if e.Date.IsZero() {
		e.Date = now
	}
	year := e.Date.Year()
	if e.FiscalYear == "" {
		e.FiscalYear = strconv.Itoa(year)
	}
	if e.Status == "" {
		e.Status = StatusDraft
	}
	if e.Reference.Kind == "" {
		e.Reference.Kind = RefManual
	}

	e.ID = ids.New()
	e.PieceNumber = NextPieceNumber(year, s.highestSequenceLocked(year))
	e.CreatedAt = now
	e.UpdatedAt = now
	e = Recompute(e)

	stored := e
	s.entries[e.ID] = &stored
	return e, nil
}

func (s *InMemory) GetEntry(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *InMemory) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	if err := ValidatePostings(e.Postings); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[e.ID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if err := AssertMutable(*current); err != nil {
		return Entry{}, err
	}

	// identity and lifecycle fields are not editable
	e.PieceNumber = current.PieceNumber
	e.FiscalYear = current.FiscalYear
	e.Status = current.Status
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	e = Recompute(e)

	stored := e
	s.entries[e.ID] = &stored
	return e, nil
}

func (s *InMemory) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if err := AssertDeletable(*e); err != nil {
		return err
	}
	delete(s.entries, id)
	return nil
}

func (s *InMemory) TransitionEntry(ctx context.Context, id string, target Status) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	moved, err := Transition(Recompute(*e), target)
	if err != nil {
		return Entry{}, err
	}
	moved.UpdatedAt = time.Now().UTC()
	stored := moved
	s.entries[id] = &stored
	return copyEntry(&stored), nil
}

func (s *InMemory) ListEntries(ctx context.Context, f ListFilter) (ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for _, e := range s.entries {
		if matchesFilter(*e, f) {
			matched = append(matched, copyEntry(e))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].PieceNumber > matched[j].PieceNumber
	})

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	total := len(matched)
	totalPages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	if offset > total {
		offset = total
	}
	endIdx := offset + limit
	if endIdx > total {
		endIdx = total
	}

	return ListResult{
		Entries:    matched[offset:endIdx],
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
	}, nil
}

func (s *InMemory) HighestPieceSequence(ctx context.Context, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highestSequenceLocked(year), nil
}

func (s *InMemory) highestSequenceLocked(year int) int {
	prefix := "JE-" + strconv.Itoa(year) + "-"
	highest := 0
	for _, e := range s.entries {
		if !strings.HasPrefix(e.PieceNumber, prefix) {
			continue
		}
		if seq, err := PieceSequence(e.PieceNumber); err == nil && seq > highest {
			highest = seq
		}
	}
	return highest
}

func matchesFilter(e Entry, f ListFilter) bool {
	if f.Business != "" && e.Business != f.Business {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.StartDate.IsZero() && e.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && e.Date.After(f.EndDate) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if strings.Contains(strings.ToLower(e.PieceNumber), needle) ||
			strings.Contains(strings.ToLower(e.Description), needle) {
			return true
		}
		for _, p := range e.Postings {
			if strings.Contains(strings.ToLower(p.AccountName), needle) {
				return true
			}
		}
		return false
	}
	return true
}

func copyEntry(e *Entry) Entry {
	out := *e
	out.Postings = make([]Posting, len(e.Postings))
	copy(out.Postings, e.Postings)
	return out
}
