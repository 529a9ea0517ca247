package playground

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompileProxyProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CompileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "package main", req.Code)

		json.NewEncoder(w).Encode(Response{Events: []Event{{Message: "hi\n", Kind: KindStdout}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Compile(context.Background(), "package main")
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	require.Equal(t, "hi\n", resp.Events[0].Message)
}

func TestCompileUpstreamProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "2", r.PostForm.Get("version"))
		require.Equal(t, "package main", r.PostForm.Get("body"))
		io.WriteString(w, `{"Errors":"prog.go:1: syntax error"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithUpstream())
	resp, err := c.Compile(context.Background(), "package main")
	require.NoError(t, err)
	require.Equal(t, "prog.go:1: syntax error", resp.Errors)
}

func TestCompileStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Compile(context.Background(), "package main")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnexpectedStatus))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Equal(t, "HTTP error! status: 502", statusErr.Error())
}

func TestCompileHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Compile(ctx, "package main")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()
	require.NoError(t, NewClient(srv.URL).HealthCheck(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	require.Error(t, NewClient(down.URL).HealthCheck(context.Background()))
}
