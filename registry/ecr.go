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

package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrTypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/fnforge/fnforge/logging"
)

// ECRAPI is the subset of the ECR API the manager uses. Narrow
// interfaces keep the mocks hand-writable.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// Manager resolves repositories and credentials for one registry
// target. Credentials are cached until close to expiry; Invalidate
// forces the next Authenticate to fetch a fresh token.
type Manager struct {
	Client ECRAPI
	Target Target

	// now is replaceable for expiry tests.
	now func() time.Time

	mu     sync.Mutex
	cached *Credentials
}

// NewManager creates a Manager for the given target.
func NewManager(client ECRAPI, target Target) *Manager {
	return &Manager{Client: client, Target: target, now: time.Now}
}

// EnsureRepository returns a handle to the target repository, creating
// it when absent. Calling it again once the repository exists returns
// the same handle without modifying anything.
func (m *Manager) EnsureRepository(ctx context.Context) (RepositoryHandle, error) {
	name := m.Target.Repository

	out, err := m.Client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RegistryId:      aws.String(m.Target.AccountID),
		RepositoryNames: []string{name},
	})
	if err == nil {
		if len(out.Repositories) == 0 {
			return RepositoryHandle{}, &RegistryError{Repository: name, Op: "describe", Err: fmt.Errorf("empty response")}
		}
		return handleFromRepository(out.Repositories[0]), nil
	}

	var notFound *ecrTypes.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		if isAccessDenied(err) {
			return RepositoryHandle{}, &AuthError{Registry: m.Target.Host(), Err: err}
		}
		return RepositoryHandle{}, &RegistryError{Repository: name, Op: "describe", Err: err}
	}

	logging.InfoContext(ctx, "Creating ECR repository %s", name)

	created, err := m.Client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
	})
	if err != nil {
		// Lost a create race: someone else made it between our describe
		// and create. The repository exists, which is all we need.
		var exists *ecrTypes.RepositoryAlreadyExistsException
		if errors.As(err, &exists) {
			return m.EnsureRepository(ctx)
		}
		return RepositoryHandle{}, &RegistryError{Repository: name, Op: "create", Err: err}
	}

	if created.Repository == nil {
		return RepositoryHandle{}, &RegistryError{Repository: name, Op: "create", Err: fmt.Errorf("empty response")}
	}
	return handleFromRepository(*created.Repository), nil
}

func handleFromRepository(repo ecrTypes.Repository) RepositoryHandle {
	return RepositoryHandle{
		Name:       aws.ToString(repo.RepositoryName),
		URI:        aws.ToString(repo.RepositoryUri),
		ARN:        aws.ToString(repo.RepositoryArn),
		RegistryID: aws.ToString(repo.RegistryId),
	}
}

// Authenticate returns registry credentials, reusing the cached token
// while it remains comfortably unexpired.
func (m *Manager) Authenticate(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && !m.cached.Expired(m.now()) {
		return *m.cached, nil
	}

	logging.DebugContext(ctx, "Fetching ECR authorization token for %s", m.Target.Host())

	out, err := m.Client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return Credentials{}, &AuthError{Registry: m.Target.Host(), Err: err}
	}
	if len(out.AuthorizationData) == 0 {
		return Credentials{}, &AuthError{Registry: m.Target.Host(), Err: fmt.Errorf("no authorization data returned")}
	}

	creds, err := decodeAuthorizationData(out.AuthorizationData[0])
	if err != nil {
		return Credentials{}, &AuthError{Registry: m.Target.Host(), Err: err}
	}

	m.cached = &creds
	return creds, nil
}

// Invalidate drops the cached credentials. The next Authenticate call
// fetches a fresh token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
}

// decodeAuthorizationData unpacks an ECR token, which is base64 of
// "AWS:<password>".
func decodeAuthorizationData(data ecrTypes.AuthorizationData) (Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to decode authorization token: %v", err)
	}

	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credentials{}, fmt.Errorf("malformed authorization token")
	}

	server := strings.TrimPrefix(aws.ToString(data.ProxyEndpoint), "https://")

	return Credentials{
		Username:      username,
		Password:      password,
		ServerAddress: server,
		ExpiresAt:     aws.ToTime(data.ExpiresAt),
	}, nil
}
