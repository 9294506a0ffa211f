package handlers

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/services"
)

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                         DashboardPath,
		"/orga/event/":             "/orga/event/",
		"/orga/event/?some=param":  "/orga/event/?some=param",
		"https://evil.example.org": DashboardPath,
		"//evil.example.org":       DashboardPath,
		`/\evil.example.org`:       DashboardPath,
		"orga/event/":              DashboardPath,
	}

	for input, want := range cases {
		require.Equal(t, want, safeNext(input), "next=%q", input)
	}
}

func TestDestinationFromQuery(t *testing.T) {
	require.Equal(t, "", destinationFromQuery(url.Values{}))

	require.Equal(t, "/orga/event/", destinationFromQuery(url.Values{
		"next": {"/orga/event/"},
	}))

	got := destinationFromQuery(url.Values{
		"next": {"/orga/event/"},
		"some": {"param"},
	})
	require.Equal(t, "/orga/event/?some=param", got)
}

func TestDestinationRoundTripWithNextInQuery(t *testing.T) {
	original, err := url.Parse("/orga/event/?next=/elsewhere&some=param")
	require.NoError(t, err)

	redirect, err := url.Parse(middleware.LoginRedirectURL(original))
	require.NoError(t, err)

	// The folded destination survives the login round trip untouched.
	got := destinationFromQuery(redirect.Query())
	require.Equal(t, "/orga/event/?next=/elsewhere&some=param", got)
	require.Equal(t, got, safeNext(got))
}

func TestValidationMessage(t *testing.T) {
	require.Contains(t, validationMessage(services.ErrPasswordMismatch), "do not match")
	require.Contains(t, validationMessage(services.ErrEmailRegistered), "already exists")
}
