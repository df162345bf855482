// Copyright 2026 The Lemmadex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists sites, pages, lemmas and the inverted index in
// SQLite via gorm.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the gorm handle with the operations the indexing pipeline
// needs. All methods are safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// DefaultPath returns the default database location under the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".lemmadex", "lemmadex.db"), nil
}

// New opens (creating if necessary) the SQLite database at path, runs
// migrations and sets up the composite unique indexes. An empty path uses
// DefaultPath.
func New(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// WAL keeps readers unblocked while the crawl workers write.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000000000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&Site{}, &Page{}, &Lemma{}, &Index{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	// AutoMigrate cannot express composite unique keys from struct tags.
	for _, stmt := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_page_site_path ON page(site_id, path)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_lemma_site_lemma ON lemma(site_id, lemma)",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("creating unique index: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ResetAll deletes all indexing data. Children go first so the cascade never
// races the crawl workers of a previous run.
func (s *Store) ResetAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM indexx",
			"DELETE FROM lemma",
			"DELETE FROM page",
			"DELETE FROM site",
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateSite inserts a new site row.
func (s *Store) CreateSite(site *Site) error {
	return s.db.Create(site).Error
}

// FindSiteByURL looks a site up by its exact seed URL. Returns (nil, nil)
// when absent.
func (s *Store) FindSiteByURL(url string) (*Site, error) {
	var site Site
	err := s.db.Where("url = ?", url).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// FindSiteByHost finds the site whose seed URL contains the given host,
// used to route single-page indexing requests. Returns (nil, nil) when no
// configured site matches.
func (s *Store) FindSiteByHost(host string) (*Site, error) {
	var site Site
	err := s.db.Where("url LIKE ?", "%"+host+"%").First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// ListSites returns all site rows.
func (s *Store) ListSites() ([]Site, error) {
	var sites []Site
	if err := s.db.Order("id").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// UpdateSiteStatus sets a site's status, status time and last error in one
// write.
func (s *Store) UpdateSiteStatus(siteID uint, status, lastError string) error {
	return s.db.Model(&Site{}).Where("id = ?", siteID).Updates(map[string]any{
		"status":      status,
		"status_time": time.Now(),
		"last_error":  lastError,
	}).Error
}

// TouchSiteStatusTime bumps a site's status time, signalling crawl liveness.
func (s *Store) TouchSiteStatusTime(siteID uint) error {
	return s.db.Model(&Site{}).Where("id = ?", siteID).
		Update("status_time", time.Now()).Error
}

// FindPage looks a page up by site and canonical path. Returns (nil, nil)
// when absent.
func (s *Store) FindPage(siteID uint, path string) (*Page, error) {
	var page Page
	err := s.db.Where("site_id = ? AND path = ?", siteID, path).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// CreatePage inserts a page row.
func (s *Store) CreatePage(page *Page) error {
	return s.db.Create(page).Error
}

// SavePage updates an existing page row in place.
func (s *Store) SavePage(page *Page) error {
	return s.db.Save(page).Error
}

// FirstOrCreatePage inserts the page unless a row for (site_id, path) already
// exists, and returns the stored row either way. Concurrent workers can race
// on the unique index; the loser reloads the winner's row.
func (s *Store) FirstOrCreatePage(page *Page) (*Page, bool, error) {
	existing, err := s.FindPage(page.SiteID, page.Path)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := s.db.Create(page).Error; err != nil {
		existing, findErr := s.FindPage(page.SiteID, page.Path)
		if findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return page, true, nil
}

// FindLemma looks a lemma up by site and normal form. Returns (nil, nil)
// when absent.
func (s *Store) FindLemma(siteID uint, lemma string) (*Lemma, error) {
	var row Lemma
	err := s.db.Where("site_id = ? AND lemma = ?", siteID, lemma).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveLemmasBatch writes a batch of lemma rows in one transaction, creating
// rows without an ID and updating the rest.
func (s *Store) SaveLemmasBatch(lemmas []*Lemma) error {
	if len(lemmas) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, l := range lemmas {
			if l.ID == 0 {
				if err := tx.Create(l).Error; err != nil {
					return err
				}
			} else if err := tx.Save(l).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveIndicesBatch inserts index rows in chunks inside one transaction.
func (s *Store) SaveIndicesBatch(indices []*Index) error {
	if len(indices) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(indices, 500).Error
	})
}

// IndicesForPage returns the index rows of a page with their lemmas
// preloaded.
func (s *Store) IndicesForPage(pageID uint) ([]Index, error) {
	var indices []Index
	err := s.db.Preload("Lemma").Where("page_id = ?", pageID).Find(&indices).Error
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// DeleteIndicesForPage removes all index rows of a page and returns them
// with their lemmas preloaded, so the caller can rebalance lemma
// frequencies.
func (s *Store) DeleteIndicesForPage(pageID uint) ([]Index, error) {
	var indices []Index
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Lemma").Where("page_id = ?", pageID).Find(&indices).Error; err != nil {
			return err
		}
		return tx.Where("page_id = ?", pageID).Delete(&Index{}).Error
	})
	if err != nil {
		return nil, err
	}
	return indices, nil
}

// AdjustLemmaFrequencies subtracts each removed index's rank from its
// lemma's frequency, clamping at zero.
func (s *Store) AdjustLemmaFrequencies(removed []Index) error {
	if len(removed) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, idx := range removed {
			if idx.Lemma == nil {
				continue
			}
			freq := idx.Lemma.Frequency - int(idx.Rank)
			if freq < 0 {
				freq = 0
			}
			if err := tx.Model(&Lemma{}).Where("id = ?", idx.LemmaID).
				Update("frequency", freq).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CountPages returns the number of pages stored for a site.
func (s *Store) CountPages(siteID uint) (int64, error) {
	var n int64
	err := s.db.Model(&Page{}).Where("site_id = ?", siteID).Count(&n).Error
	return n, err
}

// CountLemmas returns the number of distinct lemmas stored for a site.
func (s *Store) CountLemmas(siteID uint) (int64, error) {
	var n int64
	err := s.db.Model(&Lemma{}).Where("site_id = ?", siteID).Count(&n).Error
	return n, err
}
