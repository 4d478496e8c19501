/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package deploy

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fnforge/fnforge/errors"
)

// StateFileName is the per-source-dir record of published images.
const StateFileName = ".fnforge-state.yaml"

// nowFunc is replaceable for tests.
var nowFunc = time.Now

// StateEntry records one published build for a repository.
//
// **Attributes:**
//
// BuildDigest: Local image digest of the build that was published.
// PublishedURI: Registry reference produced by the publish stage.
// PublishedAt: When the publish happened.
type StateEntry struct {
	BuildDigest  string    `yaml:"build_digest"`
	PublishedURI string    `yaml:"published_uri"`
	PublishedAt  time.Time `yaml:"published_at"`
}

// State maps repository names to their last published build.
type State struct {
	Repositories map[string]StateEntry `yaml:"repositories"`
}

// LoadState reads the state file under dir. A missing file yields an
// empty state.
func LoadState(dir string) (*State, error) {
	path := filepath.Join(dir, StateFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Repositories: map[string]StateEntry{}}, nil
		}
		return nil, errors.Wrap("read state file", path, err)
	}

	var state State
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrap("parse state file", path, err)
	}
	if state.Repositories == nil {
		state.Repositories = map[string]StateEntry{}
	}
	return &state, nil
}

// Recorded returns the entry for a repository, if any.
func (s *State) Recorded(repository string) (StateEntry, bool) {
	entry, ok := s.Repositories[repository]
	return entry, ok
}

// Record stores the entry for a repository.
func (s *State) Record(repository string, entry StateEntry) {
	if s.Repositories == nil {
		s.Repositories = map[string]StateEntry{}
	}
	s.Repositories[repository] = entry
}

// Save writes the state file under dir.
func (s *State) Save(dir string) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap("encode state file", "", err)
	}

	path := filepath.Join(dir, StateFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap("write state file", path, err)
	}
	return nil
}
