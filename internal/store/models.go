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

package store

import "time"

// Site indexing statuses.
const (
	StatusIndexing = "INDEXING"
	StatusIndexed  = "INDEXED"
	StatusFailed   = "FAILED"
)

// Site is a configured site being crawled and indexed.
type Site struct {
	ID         uint      `gorm:"primaryKey"`
	URL        string    `gorm:"not null"`
	Name       string    `gorm:"not null"`
	Status     string    `gorm:"not null;default:'INDEXING'"`
	StatusTime time.Time `gorm:"not null"`
	LastError  string    `gorm:"type:text"`
}

func (Site) TableName() string { return "site" }

// Page is one fetched document, stored under its site-relative path.
// (site_id, path) is unique; see the index created in NewStore.
type Page struct {
	ID      uint   `gorm:"primaryKey"`
	SiteID  uint   `gorm:"not null;index"`
	Path    string `gorm:"not null;size:255;index"`
	Code    int    `gorm:"not null"`
	Content string `gorm:"type:mediumtext"`
	Site    *Site  `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

func (Page) TableName() string { return "page" }

// Lemma is a normalized word form with the number of pages of its site that
// contain it. (site_id, lemma) is unique.
type Lemma struct {
	ID        uint   `gorm:"primaryKey"`
	SiteID    uint   `gorm:"not null;index"`
	Lemma     string `gorm:"not null;size:255"`
	Frequency int    `gorm:"not null"`
	Site      *Site  `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
}

func (Lemma) TableName() string { return "lemma" }

// Index links a lemma to a page with its in-page occurrence count as rank.
// The table and rank column carry doubled letters because "index" and "rank"
// collide with SQL keywords.
type Index struct {
	ID      uint    `gorm:"primaryKey"`
	PageID  uint    `gorm:"not null;index"`
	LemmaID uint    `gorm:"not null;index"`
	Rank    float64 `gorm:"column:rankk;not null"`
	Page    *Page   `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
	Lemma   *Lemma  `gorm:"foreignKey:LemmaID;constraint:OnDelete:CASCADE"`
}

func (Index) TableName() string { return "indexx" }
