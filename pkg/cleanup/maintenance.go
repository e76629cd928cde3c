package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dyluth/snapvault/pkg/storage"
)

// Maintenance is the capability to wipe whole backends. It is built from
// admin handles, which only test fixtures and operator tooling construct.
type Maintenance struct {
	objects storage.ObjectAdmin
	rows    []storage.RowAdmin
	opts    []Option
}

// NewMaintenance bundles an object admin and any number of row admins.
// objects may be nil when only row stores are managed.
func NewMaintenance(objects storage.ObjectAdmin, rows ...storage.RowAdmin) *Maintenance {
	return &Maintenance{objects: objects, rows: rows}
}

// WithOptions sets the engine options used by every purge.
func (m *Maintenance) WithOptions(opts ...Option) *Maintenance {
	m.opts = append(m.opts, opts...)
	return m
}

// PurgeObjects deletes every object in every namespace.
func (m *Maintenance) PurgeObjects(ctx context.Context) (Report, error) {
	if m.objects == nil {
		return Report{Kind: KindObjects}, fmt.Errorf("no object admin configured")
	}
	return Objects(m.objects, m.opts...).Run(ctx)
}

// PurgeRows deletes every row of every table in every row admin. The admins
// are purged concurrently; the reports are in admin order.
func (m *Maintenance) PurgeRows(ctx context.Context) ([]Report, error) {
	reports := make([]Report, len(m.rows))
	errs := make([]error, len(m.rows))

	var wg sync.WaitGroup
	for i, admin := range m.rows {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], errs[i] = Rows(admin, m.opts...).Run(ctx)
		}()
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}

// PurgeAll purges objects and rows concurrently. The object report, if an
// object admin is configured, comes first.
func (m *Maintenance) PurgeAll(ctx context.Context) ([]Report, error) {
	var (
		wg         sync.WaitGroup
		objReport  Report
		objErr     error
		rowReports []Report
		rowErr     error
	)

	if m.objects != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			objReport, objErr = m.PurgeObjects(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		rowReports, rowErr = m.PurgeRows(ctx)
	}()
	wg.Wait()

	var reports []Report
	if m.objects != nil {
		reports = append(reports, objReport)
	}
	reports = append(reports, rowReports...)
	return reports, errors.Join(objErr, rowErr)
}
