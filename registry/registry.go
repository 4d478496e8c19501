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

// Package registry manages ECR repositories and the short-lived
// credentials needed to push to them.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	dockerRegistry "github.com/docker/docker/api/types/registry"
)

// Target identifies an ECR repository within an account and region.
//
// **Attributes:**
//
// AccountID: 12-digit AWS account ID.
// Region: AWS region hosting the registry.
// Repository: Repository name (lowercase, digits, / - _ separators).
type Target struct {
	AccountID  string
	Region     string
	Repository string
}

// Host returns the registry hostname for the target account and region.
func (t Target) Host() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", t.AccountID, t.Region)
}

// RepositoryHandle is a resolved, existing repository.
//
// **Attributes:**
//
// Name: Repository name.
// URI: Registry URI images are tagged against, host/name.
// ARN: Repository ARN.
// RegistryID: Owning account ID as reported by ECR.
type RepositoryHandle struct {
	Name       string
	URI        string
	ARN        string
	RegistryID string
}

// Credentials are a decoded ECR authorization token.
//
// **Attributes:**
//
// Username: Registry username, always "AWS" for ECR.
// Password: Short-lived token, treated as a secret.
// ServerAddress: Registry endpoint the token is valid for.
// ExpiresAt: Token expiry reported by ECR.
type Credentials struct {
	Username      string
	Password      string
	ServerAddress string
	ExpiresAt     time.Time
}

// Expired reports whether the credentials are unusable at the given
// time. A small skew margin avoids presenting a token that dies
// mid-push.
func (c Credentials) Expired(now time.Time) bool {
	const skew = 2 * time.Minute
	return !c.ExpiresAt.After(now.Add(skew))
}

// EncodeDockerAuth encodes the credentials in the X-Registry-Auth
// header format the Docker engine expects.
func (c Credentials) EncodeDockerAuth() (string, error) {
	payload, err := json.Marshal(dockerRegistry.AuthConfig{
		Username:      c.Username,
		Password:      c.Password,
		ServerAddress: c.ServerAddress,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode registry auth: %v", err)
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}
