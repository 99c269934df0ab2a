// Package identifier produces NENA-format unique identifiers
// ({prefix}{number}@{agencyId}) for NG911 features. A per-feature-type
// counter is cached in memory to avoid a store read per insert and persisted
// to the NENA_IDs control table, which holds exactly one row with one column
// per feature type.
package identifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// Allocator issues monotonically increasing identifiers per feature type.
// All allocation within a process is serialized through one Allocator
// instance; cross-process writers must additionally serialize through the
// store's edit sessions.
type Allocator struct {
	store    store.FeatureStore
	log      *logger.Logger
	agencyID string

	mu    sync.Mutex
	cache map[string]int64 // last issued value per feature type
}

// NewAllocator creates an allocator persisting counters through the store.
func NewAllocator(st store.FeatureStore, log *logger.Logger, agencyID string) *Allocator {
	return &Allocator{
		store:    st,
		log:      log.WithComponent("identifier"),
		agencyID: agencyID,
		cache:    make(map[string]int64),
	}
}

// Next returns the next unique numeric identifier for the feature type.
// On a cache miss the persisted counter row is consulted; a missing row or
// column counts as zero.
func (a *Allocator) Next(ctx context.Context, featureType string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, ok := a.cache[featureType]
	if !ok {
		persisted, err := a.readPersisted(ctx, featureType)
		if err != nil {
			return 0, err
		}
		last = persisted
	}

	next := last + 1
	a.cache[featureType] = next
	return next, nil
}

// Save reconciles an identifier value observed in committed data (for
// example parsed from a legacy identifier string) against the cache. When
// the observed value is at or past the cached value the cache is bumped past
// it, so Next never re-issues an externally used identifier. The updated
// counter is persisted immediately.
func (a *Allocator) Save(ctx context.Context, featureType string, observed int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cached, ok := a.cache[featureType]; !ok || observed >= cached {
		a.cache[featureType] = observed
	}

	return a.persist(ctx, featureType, a.cache[featureType])
}

// Flush persists every cached counter in a single edit session. Called when
// a schema's pending features are committed.
func (a *Allocator) Flush(ctx context.Context) error {
	a.mu.Lock()
	snapshot := make(map[string]int64, len(a.cache))
	for k, v := range a.cache {
		snapshot[k] = v
	}
	a.mu.Unlock()

	return a.store.WithEdit(ctx, func(ctx context.Context) error {
		for featureType, value := range snapshot {
			if err := a.persist(ctx, featureType, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// readPersisted loads the last issued value for a feature type from the
// single-row identifiers table. Extra rows found in the table are removed as
// a repair action, keeping only the first.
func (a *Allocator) readPersisted(ctx context.Context, featureType string) (int64, error) {
	rows, err := a.store.Query(ctx, schema.LayerNENAIDs, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read identifiers table: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if len(rows) > 1 {
		a.log.Warn("Identifiers table has extra rows, repairing", map[string]interface{}{
			"rows": len(rows),
		})
		for _, extra := range rows[1:] {
			if err := a.store.Delete(ctx, schema.LayerNENAIDs, extra.OID); err != nil {
				return 0, fmt.Errorf("failed to repair identifiers table: %w", err)
			}
		}
	}

	value, _ := rows[0].GetInt(featureType)
	return value, nil
}

// persist writes one counter column into the single identifiers row,
// creating the row when absent.
func (a *Allocator) persist(ctx context.Context, featureType string, value int64) error {
	rows, err := a.store.Query(ctx, schema.LayerNENAIDs, nil)
	if err != nil {
		return fmt.Errorf("failed to read identifiers table: %w", err)
	}

	if len(rows) == 0 {
		row := models.NewFeature(nil, nil, map[string]interface{}{featureType: value})
		if _, err := a.store.Insert(ctx, schema.LayerNENAIDs, row); err != nil {
			return fmt.Errorf("failed to create identifiers row: %w", err)
		}
		return nil
	}

	row := rows[0]
	row.Put(featureType, value)
	if err := a.store.Update(ctx, schema.LayerNENAIDs, row); err != nil {
		return fmt.Errorf("failed to persist identifier counter: %w", err)
	}

	for _, extra := range rows[1:] {
		if err := a.store.Delete(ctx, schema.LayerNENAIDs, extra.OID); err != nil {
			return fmt.Errorf("failed to repair identifiers table: %w", err)
		}
	}
	return nil
}

// NewID allocates the next identifier for the feature type and formats it as
// a NENA identifier string using the schema's prefix.
func (a *Allocator) NewID(ctx context.Context, desc *schema.Descriptor) (string, error) {
	n, err := a.Next(ctx, desc.FeatureType)
	if err != nil {
		return "", err
	}
	return Format(desc.NENAPrefix, n, a.agencyID), nil
}

// Format renders a NENA identifier string: {prefix}{number}@{agencyId}.
func Format(prefix string, number int64, agencyID string) string {
	return fmt.Sprintf("%s%d@%s", prefix, number, agencyID)
}

var idPattern = regexp.MustCompile(`^([A-Za-z_]+)(\d+)@(.+)$`)

// Parse splits a NENA identifier string into its prefix, numeric value, and
// agency suffix. ok is false when the string is not NENA-formatted.
func Parse(id string) (prefix string, number int64, agencyID string, ok bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, "", false
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return m[1], n, m[3], true
}
