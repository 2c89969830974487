package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/entity"
	alertrepo "github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/repo"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
)

// Repository is the event-store surface the service needs.
type Repository interface {
	ScanLogs(ctx context.Context, f entity.LogFilter) ([]entity.Record, error)
	ScanAlerts(ctx context.Context, label string) ([]entity.Record, error)
	Get(ctx context.Context, key entity.Key) (*entity.Record, error)
	SetOwner(ctx context.Context, key entity.Key, owner string) error
	SetStatus(ctx context.Context, key entity.Key, status, actor string) error
}

var (
	ErrNoAlerts      = apperr.Validation("Invalid alerts array provided.")
	ErrBadAlertKey   = apperr.Validation("Invalid alert structure. Missing ConnectionID or SrcIP.")
	ErrOwnerRequired = apperr.Validation("New owner is required.")
	ErrInvalidStatus = apperr.Validation("Invalid status value")
	ErrAlertNotFound = apperr.NotFound("Alert not found")
	ErrNotAlertOwner = apperr.Forbidden("You are not the owner of this alert.")
)

const (
	errOwnerStoreMsg  = "Error updating alert owner"
	errStatusStoreMsg = "Error updating alert status"
)

// AlertService serves log queries and operator mutations over the event
// store.
type AlertService struct {
	repo Repository
}

func NewAlertService(r Repository) *AlertService {
	return &AlertService{repo: r}
}

// QueryLogs returns every record matching f, or the whole table when f is
// empty.
func (s *AlertService) QueryLogs(ctx context.Context, f entity.LogFilter) ([]entity.Record, error) {
	out, err := s.repo.ScanLogs(ctx, f)
	if err != nil {
		return nil, apperr.Store("Error fetching IDS logs", err)
	}
	return out, nil
}

// ListAlerts returns the alert projection of every non-normal record, or of
// records carrying exactly label.
func (s *AlertService) ListAlerts(ctx context.Context, label string) ([]entity.AlertView, error) {
	recs, err := s.repo.ScanAlerts(ctx, label)
	if err != nil {
		return nil, apperr.Store("Error fetching alerts", err)
	}
	out := make([]entity.AlertView, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].AlertView())
	}
	return out, nil
}

// ChangeOwner assigns newOwner to every referenced record. All refs are
// validated before the first write. Writes are independent: a failure at
// ref k leaves refs before k updated.
func (s *AlertService) ChangeOwner(ctx context.Context, refs []entity.Key, newOwner string) error {
	if len(refs) == 0 {
		return ErrNoAlerts
	}
	for _, k := range refs {
		if !k.Valid() {
			return ErrBadAlertKey
		}
	}
	if newOwner == "" {
		return ErrOwnerRequired
	}
	for i, k := range refs {
		err := s.repo.SetOwner(ctx, k, newOwner)
		if errors.Is(err, alertrepo.ErrNotFound) {
			return ErrAlertNotFound
		}
		if err != nil {
			return apperr.Store(errOwnerStoreMsg, fmt.Errorf("ref %d (%s/%s): %w", i, k.ConnectionID, k.SrcIP, err))
		}
	}
	return nil
}

// UpdateStatus sets the status of one record on behalf of actor, who must be
// its owner. The comparison is exact and case-sensitive; an unowned record
// matches nobody.
func (s *AlertService) UpdateStatus(ctx context.Context, key entity.Key, status, actor string) error {
	if !entity.ValidStatus(status) {
		return ErrInvalidStatus
	}
	if !key.Valid() {
		return ErrBadAlertKey
	}
	rec, err := s.repo.Get(ctx, key)
	if errors.Is(err, alertrepo.ErrNotFound) {
		return ErrAlertNotFound
	}
	if err != nil {
		return apperr.Store("Internal server error", err)
	}
	if rec.Owner == nil || *rec.Owner != actor {
		return ErrNotAlertOwner
	}

	err = s.repo.SetStatus(ctx, key, status, actor)
	// owner changed or item removed between read and write
	if errors.Is(err, alertrepo.ErrConditionFailed) {
		return ErrNotAlertOwner
	}
	if err != nil {
		return apperr.Store(errStatusStoreMsg, err)
	}
	return nil
}
