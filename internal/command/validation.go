package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
)

var (
	ErrDuplicateEntry = apperr.Validation("listed more than once")
	ErrInvalidDate    = apperr.Validation("estimated delivery date must be formatted as YYYY-MM-DD")
	ErrMissingID      = apperr.Validation("service order id is required")
)

func (c CreateServiceOrder) validate() error {
	if strings.TrimSpace(c.TrailerSerial) == "" ||
		strings.TrimSpace(c.ServiceType) == "" ||
		strings.TrimSpace(c.Description) == "" {
		return serviceorder.ErrMissingFields
	}
	if c.Status != "" {
		if _, err := serviceorder.ParseStatus(c.Status); err != nil {
			return err
		}
	}
	if _, err := parseDate(c.EstimatedDeliveryDate); err != nil {
		return err
	}
	return validateLists(c.Employees, c.PartUsages, c.Tools)
}

func (c UpdateServiceOrder) validate() error {
	if c.ServiceID == "" {
		return ErrMissingID
	}
	if c.EstimatedDeliveryDate != nil {
		if _, err := parseDate(*c.EstimatedDeliveryDate); err != nil {
			return err
		}
	}
	return validateLists(c.Employees, c.PartUsages, c.Tools)
}

func validateLists(employees []string, parts []PartUsageInput, tools []int64) error {
	if rfc, dup := firstDuplicate(employees); dup {
		return fmt.Errorf("employee %s: %w", rfc, ErrDuplicateEntry)
	}
	partIDs := make([]string, len(parts))
	for i, p := range parts {
		partIDs[i] = p.PartID
	}
	if id, dup := firstDuplicate(partIDs); dup {
		return fmt.Errorf("part %s: %w", id, ErrDuplicateEntry)
	}
	if id, dup := firstDuplicate(tools); dup {
		return fmt.Errorf("tool %d: %w", id, ErrDuplicateEntry)
	}
	return nil
}

func firstDuplicate[T comparable](values []T) (T, bool) {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	var zero T
	return zero, false
}

// parseDate reads a calendar date. An empty value means no date.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidDate)
	}
	return &t, nil
}
