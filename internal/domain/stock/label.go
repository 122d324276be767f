package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	generatedLabelPrefix    = "LOT-"
	defaultMaxLabelAttempts = 5
)

// LabelChecker reports whether a label is taken for an item
type LabelChecker interface {
	LabelExists(ctx context.Context, itemID uuid.UUID, label string) (bool, error)
}

// LabelGenerator derives lot labels from the clock and checks them
// against the item's existing labels before handing them out
type LabelGenerator struct {
	maxAttempts int
}

// NewLabelGenerator creates a generator. maxAttempts <= 0 uses the default.
func NewLabelGenerator(maxAttempts int) *LabelGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLabelAttempts
	}
	return &LabelGenerator{maxAttempts: maxAttempts}
}

// Resolve returns the label to use for a new lot. An explicit label must be
// free; a missing one is generated and suffixed until it is free.
func (g *LabelGenerator) Resolve(ctx context.Context, checker LabelChecker, itemID uuid.UUID, requested *string, now time.Time) (string, error) {
	if requested != nil && strings.TrimSpace(*requested) != "" {
		label := strings.TrimSpace(*requested)
		taken, err := checker.LabelExists(ctx, itemID, label)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrDuplicateLabel
		}
		return label, nil
	}

	base := fmt.Sprintf("%s%d", generatedLabelPrefix, now.UnixMilli())
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		label := base
		if attempt > 0 {
			label = fmt.Sprintf("%s-%d", base, attempt+1)
		}
		taken, err := checker.LabelExists(ctx, itemID, label)
		if err != nil {
			return "", err
		}
		if !taken {
			return label, nil
		}
	}
	return "", fmt.Errorf("no free label after %d attempts: %w", g.maxAttempts, ErrDuplicateLabel)
}
