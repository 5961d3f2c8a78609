package graph

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
)

// DefaultScopes requests the application permissions granted to the app registration
var DefaultScopes = []string{"https://graph.microsoft.com/.default"}

// credentialTokenSource adapts an Azure credential to an oauth2.TokenSource
type credentialTokenSource struct {
	ctx    context.Context
	cred   azcore.TokenCredential
	scopes []string
}

func (s *credentialTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cred.GetToken(s.ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}
	return &oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresOn,
	}, nil
}

// NewCredentialTokenSource wraps an Azure credential in a caching token source
func NewCredentialTokenSource(ctx context.Context, cred azcore.TokenCredential, scopes ...string) oauth2.TokenSource {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return oauth2.ReuseTokenSource(nil, &credentialTokenSource{
		ctx:    ctx,
		cred:   cred,
		scopes: scopes,
	})
}

// NewClientSecretTokenSource builds a token source for an app registration
// using the client credentials flow
func NewClientSecretTokenSource(ctx context.Context, tenantID, clientID, clientSecret string) (oauth2.TokenSource, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return NewCredentialTokenSource(ctx, cred), nil
}
