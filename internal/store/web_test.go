// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confserve/internal/server"
)

func TestWebLink_NoServer(t *testing.T) {
	s := newTestStore(t)
	require.Empty(t, s.WebLink())
	s.StopServer()
}

func TestStartServer_EditAndPersist(t *testing.T) {
	var updates atomic.Int32
	s := newTestStore(t, WithOnUpdated(func() { updates.Add(1) }))
	s.SetValue("name1", "x")
	s.SetValue("flag", false)

	require.NoError(t, s.StartServerWith(server.Options{Host: "127.0.0.1"}))
	t.Cleanup(s.StopServer)
	require.NoError(t, s.StartServer(0), "second start is a no-op")

	link := s.WebLink()
	require.True(t, strings.HasPrefix(link, "http://localhost:"))
	url := strings.Replace(link, "localhost", "127.0.0.1", 1)

	resp, err := http.Post(url, "application/x-www-form-urlencoded",
		strings.NewReader("name1=hello+world&flag=false&flag=true"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "<title>Demo</title>")
	require.Contains(t, string(body), `value="hello world"`)
	require.Contains(t, string(body), `name="flag" value="true" checked>`)

	require.Equal(t, "hello world", s.StringOr("name1", ""))
	require.True(t, s.BoolOr("flag", false))
	require.EqualValues(t, 1, updates.Load())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.Contains(t, string(data), "name1: hello world\n")
	require.Contains(t, string(data), "flag: true\n")

	s.StopServer()
	require.Empty(t, s.WebLink())
}

func TestStartServer_PortInUse(t *testing.T) {
	a := newTestStore(t)
	require.NoError(t, a.StartServerWith(server.Options{Host: "127.0.0.1"}))
	t.Cleanup(a.StopServer)

	port, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(a.WebLink(), "http://localhost:"), "/"))
	require.NoError(t, err)

	b := newTestStore(t)
	err = b.StartServerWith(server.Options{Host: "127.0.0.1", Port: port})
	require.ErrorIs(t, err, server.ErrPortInUse)
	require.Empty(t, b.WebLink())
}

func TestStartServer_RefusesUnstorableValue(t *testing.T) {
	s := newTestStore(t)
	s.SetValue("name1", "x")

	require.NoError(t, s.StartServerWith(server.Options{Host: "127.0.0.1"}))
	t.Cleanup(s.StopServer)
	url := strings.Replace(s.WebLink(), "localhost", "127.0.0.1", 1)

	resp, err := http.Post(url, "application/x-www-form-urlencoded",
		strings.NewReader("url=http%3A%2F%2Fexample.com&name1=ok"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "alert-danger")
	require.Contains(t, string(body), "&#34;url&#34;")
	require.False(t, s.Has("url"))
	require.Equal(t, "ok", s.StringOr("name1", ""))

	reopened := New(s.Path(), WithLogger(quietLogger()))
	require.NoError(t, reopened.LoadFromFile())
	require.Equal(t, "ok", reopened.StringOr("name1", ""))
	require.False(t, reopened.Has("url"))
}
