package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/robloxauth/internal/config"
	"github.com/shivanshkc/robloxauth/internal/repository"
	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

func TestHandler_Callback_StateValidation(t *testing.T) {
	mAllowedURLs := []string{"https://allowed.com", "https://wow.com"}
	mHandler := NewHandler(config.Config{AllowedRedirectURLs: mAllowedURLs}, nil)

	for _, tc := range []struct {
		name          string
		inputStateKey string
		errSubstring  string
	}{
		{
			name:          "State key absent",
			inputStateKey: "",
			errSubstring:  errInvalidState.Error(),
		},
		{
			name:          "State key invalid",
			inputStateKey: "not-a-valid-uuid",
			errSubstring:  errInvalidState.Error(),
		},
		{
			name:          "State key not present in the state map",
			inputStateKey: uuid.NewString(),
			errSubstring:  errutils.RequestTimeout().Error(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w, r := createMockCallbackWR("roblox", tc.inputStateKey, "anything", "")
			mHandler.Callback(w, r)

			// Verify response code and headers.
			require.Equal(t, http.StatusFound, w.Code)
			// The redirect URL is unknown, so the first allowed one is used.
			parsed, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err, "Expected Location header to be a valid URL")
			require.Equal(t, mAllowedURLs[0], parsed.Scheme+"://"+parsed.Host)
			require.Contains(t, parsed.Query().Get("error"), tc.errSubstring)
		})
	}
}

func TestHandler_Callback_Validations(t *testing.T) {
	// Common mock inputs and implementations.
	mStateKey, mCCU := uuid.NewString(), "https://allowed.com"
	mHandler := NewHandler(config.Config{AllowedRedirectURLs: []string{mCCU}}, nil)

	for _, tc := range []struct {
		name string
		// Mock inputs.
		inputProvider string
		inputCode     string
		inputError    string
		// Expectations.
		errSubstring string
	}{
		{
			name:          "Too long provider length",
			inputProvider: strings.Repeat("a", 21),
			inputCode:     "valid-code",
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Invalid provider character",
			inputProvider: "roblox$$",
			inputCode:     "valid-code",
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Provider differs from the one the flow started with",
			inputProvider: "google",
			inputCode:     "valid-code",
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Absent auth code",
			inputProvider: "roblox",
			inputCode:     "",
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Too long auth code",
			inputProvider: "roblox",
			inputCode:     strings.Repeat("a", 513),
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Invalid characters in auth code",
			inputProvider: "roblox",
			inputCode:     "code$$",
			errSubstring:  errutils.InternalServerError().Error(),
		},
		{
			name:          "Error received from provider",
			inputProvider: "roblox",
			inputError:    "access_denied",
			errSubstring:  "access_denied",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// No provider call is expected beyond building the URL.
			mProvider := &mockProvider{id: "roblox"}
			mHandler.stateMap.Store(mStateKey, stateValue{
				Attempt:           newMockAttempt(t, mProvider, mStateKey),
				ClientCallbackURL: mCCU,
			})

			w, r := createMockCallbackWR(tc.inputProvider, mStateKey, tc.inputCode, tc.inputError)
			mHandler.Callback(w, r)

			// The state can be used only once.
			_, found := mHandler.stateMap.LoadAndDelete(mStateKey)
			require.False(t, found, "Expected state key to have been deleted but it was not")

			require.Equal(t, http.StatusFound, w.Code)
			parsed, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err, "Expected Location header to be a valid URL")
			require.Equal(t, mCCU, parsed.Scheme+"://"+parsed.Host)
			require.Contains(t, parsed.Query().Get("error"), tc.errSubstring)

			mProvider.AssertNotCalled(t, "ValidateAuthorizationCode", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Callback(t *testing.T) {
	// Common mock inputs.
	mProviderName, mStateKey := "roblox", uuid.NewString()
	mCode := "f5a8a1d2-3f3e-4a0b-9c1d-0e6b7e1f4a2c"
	mCCU := "https://allowed.com/callback"
	mPicture := "https://tr.rbxcdn.com/avatar.png"
	mClaims := &oauth.IDTokenClaims{Subject: "123456", ExpiresAt: time.Now().Add(time.Hour)}
	mTokens := &oauth.Tokens{AccessToken: "mockAccessToken", IDToken: "header.payload.signature",
		IDTokenClaims: mClaims}
	mInfo := &oauth.UserInfo{User: oauth.User{ID: "123456", Name: "TestUser", Image: &mPicture}}

	for _, tc := range []struct {
		name string
		// Mock inputs.
		setup   func(m *mockProvider)
		isHTTPS bool
		// Expectations.
		expectDatabaseCall bool
		errSubstring       string
	}{
		{
			name: "Everything good, application on HTTPS domain, no errors",
			setup: func(m *mockProvider) {
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).Return(mTokens, nil).Once()
				m.On("GetUserInfo", mock.Anything, *mTokens).Return(mInfo, nil).Once()
			},
			isHTTPS:            true,
			expectDatabaseCall: true,
		},
		{
			name: "Everything good, application on HTTP domain, no errors",
			setup: func(m *mockProvider) {
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).Return(mTokens, nil).Once()
				m.On("GetUserInfo", mock.Anything, *mTokens).Return(mInfo, nil).Once()
			},
			expectDatabaseCall: true,
		},
		{
			name: "Token exchange fails",
			setup: func(m *mockProvider) {
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).
					Return(nil, errors.Join(oauth.ErrTokenExchange, oauth.ErrTransport)).Once()
			},
			errSubstring: errutils.BadGateway().Error(),
		},
		{
			name: "Identity token is invalid",
			setup: func(m *mockProvider) {
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).
					Return(nil, oauth.ErrInvalidIDToken).Once()
			},
			errSubstring: errutils.Unauthorized().Error(),
		},
		{
			name: "Profile could not be fetched",
			setup: func(m *mockProvider) {
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).Return(mTokens, nil).Once()
				m.On("GetUserInfo", mock.Anything, *mTokens).Return(nil, nil).Once()
			},
			errSubstring: errutils.BadGateway().Error(),
		},
		{
			name: "No verified identity token",
			setup: func(m *mockProvider) {
				tokens := &oauth.Tokens{AccessToken: "mockAccessToken"}
				m.On("ValidateAuthorizationCode", mock.Anything, mock.Anything).Return(tokens, nil).Once()
				m.On("GetUserInfo", mock.Anything, *tokens).Return(mInfo, nil).Once()
			},
			errSubstring: errutils.Unauthorized().Error(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := config.LoadMock()
			conf.AllowedRedirectURLs = []string{mCCU}
			// Required to test the "Secure" field of the cookie.
			conf.Application.BaseURL = "http://application.com"
			if tc.isHTTPS {
				conf.Application.BaseURL = "https://application.com"
			}

			mRepo := &mockRepository{}
			mProvider := &mockProvider{id: mProviderName}
			mHandler := NewHandler(conf, mRepo, mProvider)

			attempt := newMockAttempt(t, mProvider, mStateKey)
			mHandler.stateMap.Store(mStateKey, stateValue{Attempt: attempt, ClientCallbackURL: mCCU})
			tc.setup(mProvider)

			// Setup database call expectations.
			upserted := make(chan struct{})
			if tc.expectDatabaseCall {
				mRepo.On("UpsertUser", context.Background(), repository.User{
					Provider:       mProviderName,
					ProviderUserID: "123456",
					Name:           "TestUser",
					PictureURL:     mPicture,
				}).Run(func(mock.Arguments) { close(upserted) }).Return(nil).Once()
			}

			w, r := createMockCallbackWR(mProviderName, mStateKey, mCode, "")
			mHandler.Callback(w, r)

			// The state can be used only once.
			_, found := mHandler.stateMap.LoadAndDelete(mStateKey)
			require.False(t, found, "Expected state key to be deleted but it was not")
			mProvider.AssertExpectations(t)

			require.Equal(t, http.StatusFound, w.Code)
			parsed, err := url.Parse(w.Header().Get("Location"))
			require.NoError(t, err, "Expected Location header to be a valid URL")
			require.Equal(t, "allowed.com", parsed.Host)
			require.Equal(t, "/callback", parsed.Path)

			if tc.errSubstring != "" {
				require.Contains(t, parsed.Query().Get("error"), tc.errSubstring)
				require.Empty(t, w.Result().Cookies(), "Expected no session cookie")
				mRepo.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
				return
			}

			// The code is redeemed with the secrets of the attempt.
			call := mProvider.Calls[1]
			require.Equal(t, "ValidateAuthorizationCode", call.Method)
			exchange := call.Arguments.Get(1).(oauth.ExchangeRequest)
			require.Equal(t, mCode, exchange.Code)
			require.Equal(t, attempt.Nonce(), exchange.Nonce)
			require.NotEmpty(t, exchange.CodeVerifier)

			// Verify success behaviour.
			require.Equal(t, mProviderName, parsed.Query().Get("provider"))
			cookie := w.Result().Cookies()[0]
			require.Equal(t, sessionCookieName, cookie.Name, "Cookie name does not match")
			require.Equal(t, mTokens.IDToken, cookie.Value, "Cookie value does not match")
			require.Equal(t, "/", cookie.Path, "Cookie path does not match")
			require.Greater(t, cookie.MaxAge, 0, "Cookie max age must be positive")
			require.Equal(t, tc.isHTTPS, cookie.Secure, "Cookie secure does not match")
			require.True(t, cookie.HttpOnly, "Cookie httpOnly is not true")
			require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "Cookie SameSite does not match")

			select {
			case <-upserted:
			case <-time.After(time.Second):
				t.Fatal("Expected the user to be upserted")
			}
			mRepo.AssertExpectations(t)
		})
	}
}

// newMockAttempt returns an attempt that has sent the user to the provider.
func newMockAttempt(t *testing.T, provider *mockProvider, stateKey string) *oauth.Attempt {
	t.Helper()

	provider.On("AuthURL", mock.Anything).Return(&url.URL{}, nil).Once()
	attempt, err := oauth.NewAttempt(provider, stateKey, "http://localhost:8080/api/auth/roblox/callback")
	require.NoError(t, err, "Failed to create attempt")

	_, err = attempt.AuthURL()
	require.NoError(t, err, "Failed to build auth URL")
	return attempt
}

// createMockCallbackWR creates a mock ResponseWriter and Request to test the Callback handler.
func createMockCallbackWR(provider, stateKey, code, e string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/mock", nil)
	// Set path params.
	req = mux.SetURLVars(req, map[string]string{"provider": provider})
	// Set query params.
	q := req.URL.Query()
	q.Set("state", stateKey)
	q.Set("code", code)
	q.Set("error", e)
	req.URL.RawQuery = q.Encode()

	return httptest.NewRecorder(), req
}
