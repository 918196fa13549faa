package advisor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
)

const (
	// CacheCellLevel is the S2 cell level used as the cache key. Level 12
	// cells are roughly 3-6 km across, wide enough that nearby users share
	// a directory.
	CacheCellLevel = 12
	// CacheTTL is how long cached directories are valid
	CacheTTL = 30 * 24 * time.Hour
)

// CachedDirectoryService wraps the OSM client with database caching keyed
// by S2 cell.
type CachedDirectoryService struct {
	client *Client
	db     *sql.DB
}

// NewCachedDirectoryService creates a new cached directory service.
func NewCachedDirectoryService(db *sql.DB) *CachedDirectoryService {
	return &CachedDirectoryService{
		client: NewClient(),
		db:     db,
	}
}

// cellKey maps a coordinate to its level-12 S2 cell id.
func cellKey(lat, lon float64) uint64 {
	return uint64(s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(CacheCellLevel))
}

// Directory returns the advisor directory for a coordinate, serving from
// cache when possible and falling back to the static national listing when
// the OSM lookups fail.
func (s *CachedDirectoryService) Directory(ctx context.Context, lat, lon float64) *Directory {
	key := cellKey(lat, lon)

	if dir, err := s.getFromCache(key); err != nil {
		log.Warnf("advisor cache read failed: %v", err)
	} else if dir != nil {
		return dir
	}

	area, err := s.client.AreaName(ctx, lat, lon)
	if err != nil {
		log.Warnf("reverse geocode failed, serving fallback directory: %v", err)
		return StaticFallback()
	}

	places, err := s.client.NearbyAdvisors(ctx, lat, lon)
	if err != nil {
		log.Warnf("advisor lookup failed, serving fallback directory: %v", err)
		return StaticFallback()
	}
	if len(places) == 0 {
		return StaticFallback()
	}

	dir := &Directory{Area: area, Places: places}
	if err := s.saveToCache(key, dir); err != nil {
		log.Warnf("failed to cache advisor directory: %v", err)
	}
	return dir
}

func (s *CachedDirectoryService) getFromCache(key uint64) (*Directory, error) {
	var directoryJSON string
	err := s.db.QueryRow(`
		SELECT directory
		FROM advisor_cache
		WHERE cell_id = ? AND expires_at > NOW()
	`, key).Scan(&directoryJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var dir Directory
	if err := json.Unmarshal([]byte(directoryJSON), &dir); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached directory: %w", err)
	}
	return &dir, nil
}

func (s *CachedDirectoryService) saveToCache(key uint64, dir *Directory) error {
	directoryJSON, err := json.Marshal(dir)
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %w", err)
	}

	expiresAt := time.Now().Add(CacheTTL)

	_, err = s.db.Exec(`
		INSERT INTO advisor_cache (cell_id, directory, expires_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			directory = VALUES(directory),
			expires_at = VALUES(expires_at),
			created_at = NOW()
	`, key, string(directoryJSON), expiresAt)

	if err != nil {
		return fmt.Errorf("failed to save to cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes expired cache entries.
func (s *CachedDirectoryService) CleanExpiredCache() (int64, error) {
	result, err := s.db.Exec("DELETE FROM advisor_cache WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
