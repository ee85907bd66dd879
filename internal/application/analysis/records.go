package analysis

import (
	"context"
	"errors"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/logger"
)

// Save persists a merged record. Backend failures come back as *domain.StoreError.
func (s *Service) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
	if s.store == nil {
		return "", &domain.StoreError{Op: "save", Err: ErrNoStore}
	}
	id, err := s.store.Save(ctx, rec)
	if err != nil {
		return "", storeErr("save", err)
	}
	return id, nil
}

// Get returns a record from the status table first, then from the store.
// Reading a completed record is idempotent.
func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	if st, ok := s.statuses.Get(id); ok && st.Result != nil {
		return st.Result, nil
	}
	if s.store == nil {
		return nil, domain.ErrNotFound
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get", err)
	}
	return rec, nil
}

// ListIDs returns every stored ID, most recent first.
func (s *Service) ListIDs(ctx context.Context) ([]domain.ID, error) {
	if s.store == nil {
		return []domain.ID{}, nil
	}
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return ids, nil
}

// ListRecords loads one page of stored records. Records that cannot be read
// are logged and skipped.
func (s *Service) ListRecords(ctx context.Context, page, pageSize int) (*domain.Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	total := len(ids)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	data := make([]*domain.Record, 0, end-start)
	for _, id := range ids[start:end] {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			logger.Warn(ctx, "skipping unreadable analysis", "analysis_id", id, "error", err)
			continue
		}
		data = append(data, rec)
	}

	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	return &domain.Page{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(total),
		TotalPages: totalPages,
	}, nil
}

// Failures returns the recorded failures for one analysis.
func (s *Service) Failures(ctx context.Context, id domain.ID, limit int) ([]*domain.Failure, error) {
	if s.failures == nil {
		return []*domain.Failure{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	out, err := s.failures.ListByAnalysis(ctx, string(id), limit)
	if err != nil {
		return nil, storeErr("list failures", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}
