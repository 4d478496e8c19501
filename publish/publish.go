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

// Package publish pushes locally built images to a registry and
// produces the reference a function deployment consumes.
package publish

import (
	"fmt"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

// PublishedImage is an image that exists in the remote registry.
//
// **Attributes:**
//
// Repository: Full repository path, host/name.
// Tag: Set only for tag-addressed images.
// Digest: Registry manifest digest, set only for digest-addressed
// images.
//
// Exactly one of Tag and Digest is set, so the URI is unambiguous
// about how the image is addressed.
type PublishedImage struct {
	Repository string
	Tag        string
	Digest     digest.Digest
}

// URI returns the canonical reference for the published image:
// repo:tag when tag-addressed, repo@digest otherwise.
func (p PublishedImage) URI() string {
	if p.Tag != "" {
		return fmt.Sprintf("%s:%s", p.Repository, p.Tag)
	}
	return fmt.Sprintf("%s@%s", p.Repository, p.Digest)
}

// Parse reconstructs a PublishedImage from a URI produced by URI.
func Parse(uri string) (PublishedImage, error) {
	ref, err := reference.Parse(uri)
	if err != nil {
		return PublishedImage{}, fmt.Errorf("failed to parse image reference %q: %v", uri, err)
	}

	named, ok := ref.(reference.Named)
	if !ok {
		return PublishedImage{}, fmt.Errorf("image reference %q has no repository", uri)
	}

	img := PublishedImage{Repository: named.Name()}
	if tagged, ok := ref.(reference.Tagged); ok {
		img.Tag = tagged.Tag()
	}
	if digested, ok := ref.(reference.Digested); ok {
		img.Digest = digested.Digest()
	}

	switch {
	case img.Tag == "" && img.Digest == "":
		return PublishedImage{}, fmt.Errorf("image reference %q carries neither tag nor digest", uri)
	case img.Tag != "" && img.Digest != "":
		return PublishedImage{}, fmt.Errorf("image reference %q carries both tag and digest", uri)
	}

	return img, nil
}

// PushError reports a failed image push that is not an
// authentication problem.
type PushError struct {
	Image string
	Err   error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("failed to push image %s: %v", e.Image, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}
