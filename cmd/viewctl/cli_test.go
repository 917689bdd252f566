//go:build !js && !wasm

package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

func resetFlags() {
	manifestPath = ""
	logLevel = "ERROR"
	resolveFlags.hash, resolveFlags.role, resolveFlags.userID = "", "", ""
	resolveFlags.lastRole, resolveFlags.lastView = "", ""
	bootFlags.statePath, bootFlags.namespace, bootFlags.hash = "", "", ""
	bootFlags.signIn, bootFlags.signOut = "", false
	bootFlags.assets, bootFlags.baseURL, bootFlags.api = "", "", ""
	bootFlags.visits = nil
	bootFlags.timeout = 30 * time.Second
	tokenFlags.email, tokenFlags.name, tokenFlags.ttl = "", "", time.Hour
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), errOut.String())
	return out.String()
}

func TestResolveCommand(t *testing.T) {
	out := execute(t, "resolve", "--hash", "#/consumer/cart", "--role", "consumer", "--user", "p-1")

	var got struct {
		Role model.Role   `json:"role"`
		View model.ViewID `json:"view"`
		Rule string       `json:"rule"`
		Hash string       `json:"hash"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, model.RoleConsumer, got.Role)
	require.Equal(t, model.ViewID("cart"), got.View)
	require.Equal(t, "url", got.Rule)
	require.Equal(t, "#/consumer/cart", got.Hash)
}

func TestViewsCommandListsManifest(t *testing.T) {
	out := execute(t, "views")
	require.Contains(t, out, "ROLE")
	require.Contains(t, out, "consumer-cart")
	require.Contains(t, out, "dashboard")
}

type bootOutput struct {
	Route   model.RouteState   `json:"route"`
	Session model.SessionState `json:"session"`
	History []string           `json:"history"`
}

func boot(t *testing.T, args ...string) bootOutput {
	t.Helper()
	var report bootOutput
	require.NoError(t, json.Unmarshal([]byte(execute(t, append([]string{"boot"}, args...)...)), &report))
	return report
}

func TestBootReloadsLastActiveView(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")

	first := boot(t, "--state", statePath, "--visit", "guest/about")
	require.Equal(t, model.ViewID("about"), first.Route.View)
	require.Equal(t, []string{"#/guest/home", "#/guest/about"}, first.History)

	second := boot(t, "--state", statePath)
	require.Equal(t, model.RoleGuest, second.Route.Role)
	require.Equal(t, model.ViewID("about"), second.Route.View)
	require.Equal(t, []string{"#/guest/about"}, second.History)
}

func TestBootSignInSelfHealsProfile(t *testing.T) {
	t.Setenv("STOREFRONT_ID_SIGNING_KEY", strings.Repeat("s", 32))
	token := strings.TrimSpace(execute(t, "token", "alice", "--email", "alice@example.com"))
	require.NotEmpty(t, token)

	statePath := filepath.Join(t.TempDir(), "state.db")
	report := boot(t, "--state", statePath, "--sign-in", token)
	require.Equal(t, model.RoleConsumer, report.Route.Role)
	require.Equal(t, model.ViewID("home"), report.Route.View)
	require.Equal(t, model.RoleConsumer, report.Session.Role)
	require.NotEmpty(t, report.Session.UserID)

	signedOut := boot(t, "--state", statePath, "--sign-out")
	require.Equal(t, model.RoleGuest, signedOut.Route.Role)
	require.Empty(t, signedOut.Session.UserID)
}

func TestTokenRequiresSigningKey(t *testing.T) {
	t.Setenv("STOREFRONT_ID_SIGNING_KEY", "")
	resetFlags()
	rootCmd.SetArgs([]string{"token", "bob"})
	rootCmd.SetOut(&bytes.Buffer{})
	require.ErrorContains(t, rootCmd.Execute(), "STOREFRONT_ID_SIGNING_KEY")
}
