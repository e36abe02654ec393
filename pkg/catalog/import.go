package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/compliance/checks"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// ImportResult counts the rows handed to the store by one import. Inserts
// and no-op upserts are counted alike.
type ImportResult struct {
	Policies      int `json:"policies"`
	Versions      int `json:"versions"`
	Checks        int `json:"checks"`
	Subscriptions int `json:"subscriptions"`
}

// Total returns the number of imported items.
func (r ImportResult) Total() int {
	return r.Policies + r.Versions + r.Checks + r.Subscriptions
}

// Size returns the number of items Import will write.
func (c *Catalog) Size() int {
	n := len(c.Checks)
	for _, p := range c.Policies {
		n += 1 + len(p.Versions) + len(p.Subscribers)
	}
	return n
}

// Importer writes catalogs into a store.
type Importer struct {
	store   compliance.CatalogStore
	metrics *metrics.Collector
	logger  *slog.Logger

	// OnProgress, when set, is called after each written item with the
	// count so far.
	OnProgress func(done int)
}

// NewImporter creates an importer. collector may be nil.
func NewImporter(store compliance.CatalogStore, collector *metrics.Collector, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:   store,
		metrics: collector,
		logger:  logger.With("component", "catalog"),
	}
}

// Import validates c and writes it. Writes are idempotent: policies and
// checks are upserted, versions and subscriptions are only inserted when
// absent. The first failing write stops the import.
func (im *Importer) Import(ctx context.Context, c *Catalog) (ImportResult, error) {
	var res ImportResult
	err := im.importCatalog(ctx, c, &res)

	outcome := "success"
	if err != nil {
		outcome = "error"
		var verr *ValidationError
		if errors.As(err, &verr) {
			outcome = "invalid"
		}
	}
	im.metrics.RecordCatalogImport(outcome)

	if err != nil {
		im.logger.ErrorContext(ctx, "catalog import failed", "error", err, "imported", res.Total())
		return res, err
	}
	im.logger.InfoContext(ctx, "catalog imported",
		"policies", res.Policies,
		"versions", res.Versions,
		"checks", res.Checks,
		"subscriptions", res.Subscriptions,
	)
	return res, nil
}

func (im *Importer) importCatalog(ctx context.Context, c *Catalog, res *ImportResult) error {
	if err := c.Validate(); err != nil {
		return err
	}

	done := 0
	progress := func() {
		done++
		if im.OnProgress != nil {
			im.OnProgress(done)
		}
	}

	for i := range c.Checks {
		def, err := c.Checks[i].Definition()
		if err != nil {
			return fmt.Errorf("check %s: %w", c.Checks[i].ID, err)
		}
		im.warnUnusable(ctx, def)
		if err := im.store.UpsertCheck(ctx, def); err != nil {
			return fmt.Errorf("check %s: %w", def.ID, err)
		}
		res.Checks++
		progress()
	}

	for i := range c.Policies {
		entry := &c.Policies[i]
		if err := im.store.UpsertPolicy(ctx, entry.Policy()); err != nil {
			return fmt.Errorf("policy %s: %w", entry.ID, err)
		}
		res.Policies++
		progress()

		for j := range entry.Versions {
			v, err := entry.Versions[j].version(entry.ID, c.dir)
			if err != nil {
				return err
			}
			if err := im.store.AddVersion(ctx, v); err != nil {
				return fmt.Errorf("version %s: %w", v.ID, err)
			}
			res.Versions++
			progress()
		}

		for _, user := range entry.Subscribers {
			sub := &compliance.Subscription{PolicyID: entry.ID, UserID: user}
			if err := im.store.AddSubscription(ctx, sub); err != nil {
				return fmt.Errorf("subscription %s/%s: %w", entry.ID, user, err)
			}
			res.Subscriptions++
			progress()
		}
	}

	return nil
}

// warnUnusable logs automated checks whose name or criteria the evaluator
// will reject, so the problem shows up at import time and not only as error
// results.
func (im *Importer) warnUnusable(ctx context.Context, def *compliance.CheckDefinition) {
	if def.CheckType != compliance.CheckAutomated {
		return
	}
	if _, err := checks.Parse(def); err != nil {
		im.logger.WarnContext(ctx, "check will be recorded as errored when evaluated",
			"check_id", def.ID,
			"check_name", def.CheckName,
			"error", err,
		)
	}
}

// ImportFile loads, validates and imports the catalog at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	c, err := Load(path)
	if err != nil {
		im.metrics.RecordCatalogImport("error")
		return ImportResult{}, err
	}
	return im.Import(ctx, c)
}
