package boundary

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/zip-mapper/internal/resilience"
)

// maxGeoJSONBytes caps an in-memory GeoJSON body.
const maxGeoJSONBytes = 256 << 20

// defaultFetchTimeout bounds one shared load, retries included.
const defaultFetchTimeout = 10 * time.Minute

// RegionUnavailableError reports a known region whose dataset could not be
// fetched or decoded. Callers treat it as a warning and continue without
// highlighting.
type RegionUnavailableError struct {
	Region string
	Err    error
}

func (e *RegionUnavailableError) Error() string {
	return "boundary: region " + e.Region + " unavailable: " + e.Err.Error()
}

func (e *RegionUnavailableError) Unwrap() error { return e.Err }

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHTTPClient sets the client used for dataset downloads.
func WithHTTPClient(hc *http.Client) StoreOption {
	return func(s *Store) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithRetry retries downloads that fail with a throttling, gateway or
// network error. Without it each load makes a single attempt.
func WithRetry(cfg resilience.RetryConfig) StoreOption {
	return func(s *Store) {
		if cfg.OnRetry == nil {
			cfg.OnRetry = resilience.RetryLogger("boundary", "download")
		}
		s.retry = cfg
	}
}

// WithTempDir sets the scratch directory for shapefile archives.
func WithTempDir(dir string) StoreOption {
	return func(s *Store) {
		if dir != "" {
			s.tempDir = dir
		}
	}
}

// WithFetchTimeout bounds a shared load of one region, retries included.
// The load runs detached from any single caller's context so that one caller
// going away does not fail the others waiting on the same fetch.
func WithFetchTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// Store loads region datasets on first use and keeps them for the life of
// the process. Concurrent first loads of one region share a single fetch.
type Store struct {
	table      *Table
	httpClient *http.Client
	tempDir    string
	retry      resilience.RetryConfig

	fetchTimeout time.Duration

	mu       sync.RWMutex
	datasets map[string]*Dataset
	group    singleflight.Group
	fetches  atomic.Int64
}

// NewStore creates a Store over the given region table.
func NewStore(table *Table, opts ...StoreOption) *Store {
	if table == nil {
		table = NewTable()
	}
	s := &Store{
		table:      table,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		tempDir:    os.TempDir(),
		retry:      resilience.RetryConfig{MaxAttempts: 1},
		datasets:   make(map[string]*Dataset),

		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Regions returns the region table sorted by id.
func (s *Store) Regions() []Region {
	return s.table.All()
}

// Table returns the region table backing the store.
func (s *Store) Table() *Table {
	return s.table
}

// Fetches returns how many downloads the store has started.
func (s *Store) Fetches() int64 {
	return s.fetches.Load()
}

// Load returns the dataset for regionID. An unknown region returns nil, nil.
// A known region that cannot be fetched returns nil and a
// *RegionUnavailableError.
func (s *Store) Load(ctx context.Context, regionID string) (*Dataset, error) {
	id := NormalizeRegionID(regionID)
	region, ok := s.table.Lookup(id)
	if !ok {
		return nil, nil
	}

	if ds := s.cached(id); ds != nil {
		return ds, nil
	}

	ch := s.group.DoChan(id, func() (interface{}, error) {
		if ds := s.cached(id); ds != nil {
			return ds, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		ds, err := s.fetch(fetchCtx, region)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.datasets[id] = ds
		s.mu.Unlock()
		return ds, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, &RegionUnavailableError{Region: id, Err: eris.Wrap(ctx.Err(), "boundary: load abandoned")}
	case res = <-ch:
	}
	if res.Err != nil {
		zap.L().Warn("boundary: region unavailable",
			zap.String("region", id),
			zap.Bool("shared", res.Shared),
			zap.Error(res.Err),
		)
		return nil, &RegionUnavailableError{Region: id, Err: res.Err}
	}
	return res.Val.(*Dataset), nil
}

// Reload drops the cached dataset for regionID and loads it again.
func (s *Store) Reload(ctx context.Context, regionID string) (*Dataset, error) {
	id := NormalizeRegionID(regionID)
	s.mu.Lock()
	delete(s.datasets, id)
	s.mu.Unlock()
	s.group.Forget(id)
	return s.Load(ctx, id)
}

func (s *Store) cached(id string) *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasets[id]
}

func (s *Store) fetch(ctx context.Context, r Region) (*Dataset, error) {
	log := zap.L().With(
		zap.String("component", "boundary.store"),
		zap.String("region", r.ID),
		zap.String("url", r.URL),
	)
	start := time.Now()

	polygons, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]*Polygon, error) {
		return s.download(ctx, r, log)
	})
	if err != nil {
		return nil, err
	}
	if len(polygons) == 0 {
		return nil, eris.New("boundary: dataset has no polygons")
	}

	ds, err := NewDataset(r.ID, polygons)
	if err != nil {
		return nil, err
	}
	log.Info("boundary dataset loaded",
		zap.Int("polygons", ds.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// download makes one attempt at fetching and decoding r's dataset.
func (s *Store) download(ctx context.Context, r Region, log *zap.Logger) ([]*Polygon, error) {
	s.fetches.Add(1)
	log.Info("fetching boundary dataset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: build request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ResponseError("boundary", resp)
	}

	if r.Format == FormatGeoJSON {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxGeoJSONBytes))
		if err != nil {
			return nil, eris.Wrap(err, "boundary: read body")
		}
		return DecodeGeoJSON(bytes.TrimSpace(data), r)
	}
	return s.decodeShapefile(resp.Body, r)
}

func (s *Store) decodeShapefile(body io.Reader, r Region) ([]*Polygon, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "boundary: create temp dir")
	}
	f, err := os.CreateTemp(s.tempDir, "boundary-*.zip")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "boundary: write archive")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "boundary: close archive")
	}
	return DecodeShapefileZIP(f.Name(), s.tempDir, r)
}
