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

package urlx

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultSkipExtensions lists path suffixes of binary and media resources
// that are never fetched or indexed.
var DefaultSkipExtensions = []string{
	".pdf", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".svg", ".webp",
	".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv",
	".mp3", ".wav", ".aac", ".flac", ".ogg",
	".zip", ".rar", ".7z", ".tar", ".gz",
	".exe", ".dmg", ".iso", ".apk",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".rtf",
}

// SkipFilter matches URLs whose path ends with a skipped extension.
type SkipFilter struct {
	globs []glob.Glob
}

// NewSkipFilter compiles the extension list into path globs. A nil or empty
// list uses DefaultSkipExtensions.
func NewSkipFilter(extensions []string) (*SkipFilter, error) {
	if len(extensions) == 0 {
		extensions = DefaultSkipExtensions
	}
	globs := make([]glob.Glob, 0, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		g, err := glob.Compile("*" + strings.ToLower(ext))
		if err != nil {
			return nil, fmt.Errorf("invalid skip extension %q: %w", ext, err)
		}
		globs = append(globs, g)
	}
	return &SkipFilter{globs: globs}, nil
}

// Matches reports whether the URL points at a skipped file type.
func (f *SkipFilter) Matches(raw string) bool {
	path := strings.ToLower(raw)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = strings.ToLower(u.Path)
	}
	for _, g := range f.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
