package distance

import (
	"context"
	"fleet-routing-service/internal/domain"
	"fleet-routing-service/internal/platform/obs"
	"fleet-routing-service/internal/ports"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// distanceCache is the persistent origin->destinations store the provider reads through.
type distanceCache interface {
	GetMany(ctx context.Context, profile, origin string, destinations []string) (map[string]ports.DistanceResult, error)
	PutMany(ctx context.Context, profile, origin string, results map[string]ports.DistanceResult) error
}

// ORSDistanceProvider implements DistanceProvider using the OpenRouteService matrix API.
//
// It coordinates:
//   - Deduplication of repeated points
//   - Persistent distance caching per routing profile
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use. It never substitutes straight-line
// distances; every failure is reported as domain.ErrProviderUnavailable.
type ORSDistanceProvider struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
	cache   distanceCache
}

// NewORSDistanceProvider builds the provider. cache may be nil.
// An empty apiKey is accepted; calls then fail with ErrProviderUnavailable.
func NewORSDistanceProvider(apiKey, baseURL, profile string, cache distanceCache) *ORSDistanceProvider {
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if profile == "" {
		profile = "driving-car"
	}

	return &ORSDistanceProvider{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		cache:   cache,
	}
}

func (o *ORSDistanceProvider) PairwiseDistances(
	ctx context.Context,
	points []domain.GeoPoint,
) (_ ports.DistanceMatrix, err error) {
	defer obs.Time(ctx, "ors.PairwiseDistances")(&err)

	if len(points) == 0 {
		return ports.DistanceMatrix{}, nil
	}

	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("ors pairwise distances: point %d: %w", i, err)
		}
	}

	if o.apiKey == "" {
		return nil, fmt.Errorf("%w: ors api key is not configured", domain.ErrProviderUnavailable)
	}

	// Collapse repeated coordinates so each location is sent once.
	keys := make([]string, 0, len(points))
	uniq := make([]domain.GeoPoint, 0, len(points))
	index := make([]int, len(points))
	seen := make(map[string]int, len(points))
	for i, p := range points {
		k := p.Key()
		if at, ok := seen[k]; ok {
			index[i] = at
			continue
		}
		seen[k] = len(uniq)
		index[i] = len(uniq)
		keys = append(keys, k)
		uniq = append(uniq, p)
	}

	var unique ports.DistanceMatrix
	switch {
	case len(uniq) == 1:
		unique = zeroMatrix(1)
	default:
		unique, err = o.uniqueMatrix(ctx, keys, uniq)
		if err != nil {
			return nil, err
		}
	}

	out := make(ports.DistanceMatrix, len(points))
	for i := range points {
		out[i] = make([]ports.DistanceResult, len(points))
		for j := range points {
			out[i][j] = unique[index[i]][index[j]]
		}
	}

	return out, nil
}

// uniqueMatrix serves the matrix from cache when every leg is known and
// otherwise fetches the whole matrix in a single ORS call.
func (o *ORSDistanceProvider) uniqueMatrix(
	ctx context.Context,
	keys []string,
	points []domain.GeoPoint,
) (ports.DistanceMatrix, error) {
	if m, ok := o.fromCache(ctx, keys); ok {
		return m, nil
	}

	m, err := o.fetchMatrix(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("%w: ors matrix: %w", domain.ErrProviderUnavailable, err)
	}

	if o.cache != nil {
		o.storeRows(ctx, keys, m)
	}

	return m, nil
}

// fromCache reads one cache row per origin concurrently.
// Read errors are logged and treated as misses.
func (o *ORSDistanceProvider) fromCache(ctx context.Context, keys []string) (ports.DistanceMatrix, bool) {
	if o.cache == nil {
		return nil, false
	}

	rows := make([]map[string]ports.DistanceResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, origin := range keys {
		g.Go(func() error {
			others := make([]string, 0, len(keys)-1)
			for j, k := range keys {
				if j != i {
					others = append(others, k)
				}
			}

			row, err := o.cache.GetMany(gctx, o.profile, origin, others)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "distance cache read failed", "req_id", obs.RequestID(ctx), "error", err)
		return nil, false
	}

	m := zeroMatrix(len(keys))
	for i := range keys {
		for j, dest := range keys {
			if i == j {
				continue
			}
			r, ok := rows[i][dest]
			if !ok {
				return nil, false
			}
			m[i][j] = r
		}
	}

	return m, true
}

func (o *ORSDistanceProvider) storeRows(ctx context.Context, keys []string, m ports.DistanceMatrix) {
	for i, origin := range keys {
		row := make(map[string]ports.DistanceResult, len(keys)-1)
		for j, dest := range keys {
			if i != j {
				row[dest] = m[i][j]
			}
		}

		if err := o.cache.PutMany(ctx, o.profile, origin, row); err != nil {
			slog.WarnContext(ctx, "distance cache write failed", "req_id", obs.RequestID(ctx), "origin", origin, "error", err)
		}
	}
}

func zeroMatrix(n int) ports.DistanceMatrix {
	m := make(ports.DistanceMatrix, n)
	for i := range m {
		m[i] = make([]ports.DistanceResult, n)
	}
	return m
}
