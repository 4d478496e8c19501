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
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrTypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget() Target {
	return Target{AccountID: "123456789012", Region: "us-east-1", Repository: "terraform-lambda-repo"}
}

func authData(token, endpoint string, expiry time.Time) ecrTypes.AuthorizationData {
	data := ecrTypes.AuthorizationData{
		AuthorizationToken: aws.String(token),
		ProxyEndpoint:      aws.String(endpoint),
	}
	if !expiry.IsZero() {
		data.ExpiresAt = aws.Time(expiry)
	}
	return data
}

type mockECRAPI struct {
	describeCalls int
	createCalls   int
	tokenCalls    int

	repositories map[string]ecrTypes.Repository
	describeErr  error
	createErr    error
	tokenErr     error
	token        string
	endpoint     string
	expiry       time.Time
}

func newMockECR() *mockECRAPI {
	return &mockECRAPI{
		repositories: map[string]ecrTypes.Repository{},
		token:        base64.StdEncoding.EncodeToString([]byte("AWS:mock-token")),
		endpoint:     "https://123456789012.dkr.ecr.us-east-1.amazonaws.com",
		expiry:       time.Now().Add(12 * time.Hour),
	}
}

func (m *mockECRAPI) addRepo(name string) {
	m.repositories[name] = ecrTypes.Repository{
		RepositoryName: aws.String(name),
		RepositoryUri:  aws.String("123456789012.dkr.ecr.us-east-1.amazonaws.com/" + name),
		RepositoryArn:  aws.String("arn:aws:ecr:us-east-1:123456789012:repository/" + name),
		RegistryId:     aws.String("123456789012"),
	}
}

func (m *mockECRAPI) DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	m.describeCalls++
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	name := params.RepositoryNames[0]
	repo, ok := m.repositories[name]
	if !ok {
		return nil, &ecrTypes.RepositoryNotFoundException{Message: aws.String("repository not found")}
	}
	return &ecr.DescribeRepositoriesOutput{Repositories: []ecrTypes.Repository{repo}}, nil
}

func (m *mockECRAPI) CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	name := aws.ToString(params.RepositoryName)
	if _, ok := m.repositories[name]; ok {
		return nil, &ecrTypes.RepositoryAlreadyExistsException{Message: aws.String("repository already exists")}
	}
	m.addRepo(name)
	repo := m.repositories[name]
	return &ecr.CreateRepositoryOutput{Repository: &repo}, nil
}

func (m *mockECRAPI) GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	m.tokenCalls++
	if m.tokenErr != nil {
		return nil, m.tokenErr
	}
	return &ecr.GetAuthorizationTokenOutput{
		AuthorizationData: []ecrTypes.AuthorizationData{
			authData(m.token, m.endpoint, m.expiry),
		},
	}, nil
}

func TestEnsureRepositoryCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mgr := NewManager(mock, testTarget())

	handle, err := mgr.EnsureRepository(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "terraform-lambda-repo", handle.Name)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/terraform-lambda-repo", handle.URI)
	assert.Equal(t, "123456789012", handle.RegistryID)
	assert.Equal(t, 1, mock.createCalls)
}

func TestEnsureRepositoryIdempotent(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mgr := NewManager(mock, testTarget())

	first, err := mgr.EnsureRepository(context.Background())
	require.NoError(t, err)
	second, err := mgr.EnsureRepository(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.createCalls, "repository must be created exactly once")
}

// racingECRAPI simulates another deploy creating the repository between
// our describe and create calls.
type racingECRAPI struct {
	*mockECRAPI
}

func (r *racingECRAPI) CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	r.createCalls++
	r.addRepo(aws.ToString(params.RepositoryName))
	return nil, &ecrTypes.RepositoryAlreadyExistsException{Message: aws.String("already exists")}
}

func TestEnsureRepositoryCreateRace(t *testing.T) {
	t.Parallel()

	mock := &racingECRAPI{mockECRAPI: newMockECR()}
	mgr := NewManager(mock, testTarget())

	handle, err := mgr.EnsureRepository(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "terraform-lambda-repo", handle.Name)
	assert.Equal(t, 1, mock.createCalls)
	assert.Equal(t, 2, mock.describeCalls)
}

func TestEnsureRepositoryDescribeFailure(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mock.describeErr = fmt.Errorf("throttled")
	mgr := NewManager(mock, testTarget())

	_, err := mgr.EnsureRepository(context.Background())
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "describe", regErr.Op)
	assert.Equal(t, "terraform-lambda-repo", regErr.Repository)
}

func TestAuthenticateCachesToken(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mgr := NewManager(mock, testTarget())

	first, err := mgr.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AWS", first.Username)
	assert.Equal(t, "mock-token", first.Password)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", first.ServerAddress)

	second, err := mgr.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.tokenCalls, "valid cached token must be reused")
}

func TestAuthenticateRefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mgr := NewManager(mock, testTarget())

	now := time.Now()
	mgr.now = func() time.Time { return now }

	_, err := mgr.Authenticate(context.Background())
	require.NoError(t, err)

	// Advance past the token expiry; next call must hit the API again.
	mgr.now = func() time.Time { return mock.expiry.Add(time.Minute) }

	_, err = mgr.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.tokenCalls)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mgr := NewManager(mock, testTarget())

	_, err := mgr.Authenticate(context.Background())
	require.NoError(t, err)

	mgr.Invalidate()

	_, err = mgr.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.tokenCalls)
}

func TestEnsureRepositoryAccessDenied(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mock.describeErr = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	mgr := NewManager(mock, testTarget())

	_, err := mgr.EnsureRepository(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, mock.createCalls)
}

func TestAuthenticateFailureIsAuthError(t *testing.T) {
	t.Parallel()

	mock := newMockECR()
	mock.tokenErr = fmt.Errorf("access denied")
	mgr := NewManager(mock, testTarget())

	_, err := mgr.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Registry, "dkr.ecr")
}
