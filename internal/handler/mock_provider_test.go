package handler

import (
	"context"
	"net/url"

	"github.com/stretchr/testify/mock"

	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

// mockProvider is a mock implementation of the oauth.Provider interface.
type mockProvider struct {
	mock.Mock
	id     string
	issuer string
}

func (m *mockProvider) ID() string     { return m.id }
func (m *mockProvider) Name() string   { return "Mock" }
func (m *mockProvider) Issuer() string { return m.issuer }

func (m *mockProvider) AuthURL(req oauth.AuthorizationRequest) (*url.URL, error) {
	args := m.Called(req)
	u, _ := args.Get(0).(*url.URL)
	return u, args.Error(1)
}

func (m *mockProvider) ValidateAuthorizationCode(ctx context.Context, req oauth.ExchangeRequest,
) (*oauth.Tokens, error) {
	args := m.Called(ctx, req)
	tokens, _ := args.Get(0).(*oauth.Tokens)
	return tokens, args.Error(1)
}

func (m *mockProvider) GetUserInfo(ctx context.Context, tokens oauth.Tokens, opts ...oauth.UserInfoOption,
) (*oauth.UserInfo, error) {
	args := m.Called(ctx, tokens)
	info, _ := args.Get(0).(*oauth.UserInfo)
	return info, args.Error(1)
}

func (m *mockProvider) VerifyIDToken(ctx context.Context, token string) (*oauth.IDTokenClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*oauth.IDTokenClaims)
	return claims, args.Error(1)
}
