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

package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/opencontainers/go-digest"

	"github.com/fnforge/fnforge/builder"
	"github.com/fnforge/fnforge/logging"
	"github.com/fnforge/fnforge/registry"
)

// transportTag is the tag images travel under when the deployment is
// digest-addressed. The registry needs some tag for the push; the
// function reference never uses it.
const transportTag = "latest"

// DockerPusher is the subset of the Docker Engine API the publisher
// uses.
type DockerPusher interface {
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

// Publisher pushes built images to a repository. It performs exactly
// one push attempt; retry policy belongs to the caller.
type Publisher struct {
	Client DockerPusher
}

// NewPublisher creates a Publisher backed by the given engine client.
func NewPublisher(client DockerPusher) *Publisher {
	return &Publisher{Client: client}
}

// Publish tags the local image into the repository and pushes it. A
// non-empty tag yields a tag-addressed result; an empty tag yields a
// digest-addressed result using the manifest digest reported by the
// registry.
//
// Credential rejections surface as *registry.AuthError so callers can
// re-authenticate and retry.
func (p *Publisher) Publish(ctx context.Context, img builder.ImageRef, repo registry.RepositoryHandle, creds registry.Credentials, tag string) (PublishedImage, error) {
	pushTag := tag
	if pushTag == "" {
		pushTag = transportTag
	}
	pushRef := fmt.Sprintf("%s:%s", repo.URI, pushTag)

	if err := p.Client.ImageTag(ctx, img.LocalID, pushRef); err != nil {
		return PublishedImage{}, &PushError{Image: pushRef, Err: fmt.Errorf("failed to tag image: %v", err)}
	}

	authStr, err := creds.EncodeDockerAuth()
	if err != nil {
		return PublishedImage{}, &PushError{Image: pushRef, Err: err}
	}

	logging.InfoContext(ctx, "Pushing %s", pushRef)

	body, err := p.Client.ImagePush(ctx, pushRef, image.PushOptions{RegistryAuth: authStr})
	if err != nil {
		return PublishedImage{}, classifyPushError(pushRef, creds.ServerAddress, err.Error(), err)
	}
	defer body.Close()

	remoteDigest, err := drainPushStream(ctx, body)
	if err != nil {
		return PublishedImage{}, classifyPushError(pushRef, creds.ServerAddress, err.Error(), err)
	}

	if tag != "" {
		return PublishedImage{Repository: repo.URI, Tag: tag}, nil
	}

	if remoteDigest == "" {
		return PublishedImage{}, &PushError{Image: pushRef, Err: fmt.Errorf("registry did not report a manifest digest")}
	}
	return PublishedImage{Repository: repo.URI, Digest: remoteDigest}, nil
}

// pushStreamMessage is one JSON line of the engine's push output.
type pushStreamMessage struct {
	Status      string `json:"status"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
	Error string `json:"error"`
	Aux   *struct {
		Tag    string `json:"Tag"`
		Digest string `json:"Digest"`
		Size   int    `json:"Size"`
	} `json:"aux"`
}

// drainPushStream consumes the push progress stream and returns the
// manifest digest reported in the final aux message.
func drainPushStream(ctx context.Context, r io.Reader) (digest.Digest, error) {
	var remote digest.Digest

	dec := json.NewDecoder(r)
	for {
		var msg pushStreamMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return remote, nil
			}
			return "", fmt.Errorf("failed to decode push output: %v", err)
		}
		if msg.ErrorDetail != nil {
			return "", fmt.Errorf("%s", msg.ErrorDetail.Message)
		}
		if msg.Error != "" {
			return "", fmt.Errorf("%s", msg.Error)
		}
		if msg.Aux != nil && msg.Aux.Digest != "" {
			parsed, err := digest.Parse(msg.Aux.Digest)
			if err != nil {
				return "", fmt.Errorf("failed to parse reported digest %q: %v", msg.Aux.Digest, err)
			}
			remote = parsed
		}
		if msg.Status != "" {
			logging.DebugContext(ctx, "%s", msg.Status)
		}
	}
}

// classifyPushError maps credential rejections to *registry.AuthError
// and everything else to *PushError.
func classifyPushError(pushRef, server, message string, err error) error {
	lower := strings.ToLower(message)
	for _, marker := range []string{"unauthorized", "authentication required", "access denied", "denied", "credentials", "authorization token has expired"} {
		if strings.Contains(lower, marker) {
			return &registry.AuthError{Registry: server, Err: err}
		}
	}
	return &PushError{Image: pushRef, Err: err}
}
