package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	err        error
	lastOffset int
	lastLimit  int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = filters, offset, limit
	if s.err != nil {
		return nil, s.err
	}
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastLimit = filters, limit
	return s.rows, s.err
}

func rowAt(ts, action, entityID string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, ActorID: 11, ActorName: "Operator Kemang", Action: action, Entity: "trip", EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		rowAt("2026-03-10T10:00:00Z", "trip.complete", "t1"),
		rowAt("2026-03-10T09:00:00Z", "trip.assign", "t1"),
		rowAt("2026-03-10T08:00:00Z", "trip.create", "t1"),
	}}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Entity: "trip", PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 2, HasNext: true, NextPage: 2}, result.Paging)
	assert.Equal(t, 0, repo.lastOffset)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, "trip", repo.lastFilter.Entity)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "trip.create", result.Rows[0].Action)
	assert.Equal(t, PagingInfo{Page: 2, PageSize: 2, PrevPage: 1}, result.Paging)
	assert.Equal(t, 2, repo.lastOffset)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.NotNil(t, result.Rows)

	_, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize+1, repo.lastLimit)

	repo.err = errors.New("db down")
	_, err = svc.Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)

	_, err = NewService(nil).Timeline(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestServiceExportCapsRows(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{rowAt("2026-03-10T10:00:00Z", "trip.create", "t1")}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Action: "trip.create"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, MaxExportRows, repo.lastLimit)
}

func TestWriteCSV(t *testing.T) {
	row := rowAt("2026-03-10T10:00:00Z", "trip.driver", "t1")
	row.Meta = map[string]any{"driver": "Budi, Jr."}

	out, err := WriteCSV([]TimelineRow{row, rowAt("2026-03-10T09:00:00Z", "trip.create", "t1")})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"at", "actor_id", "actor", "action", "entity", "entity_id", "meta"}, records[0])
	assert.Equal(t, []string{"2026-03-10T10:00:00Z", "11", "Operator Kemang", "trip.driver", "trip", "t1", `{"driver":"Budi, Jr."}`}, records[1])
	assert.Equal(t, "", records[2][6])
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), endOfDay(day))
	assert.True(t, endOfDay(time.Time{}).IsZero())
	assert.False(t, optionalText("  ").Valid)
	assert.Equal(t, "trip", optionalText(" trip ").String)
	assert.False(t, optionalID(0).Valid)
}
