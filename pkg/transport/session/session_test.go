package session

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/unraid-connect/pkg/errors"
)

// countingTransport records CloseIdleConnections calls.
type countingTransport struct {
	closes atomic.Int32
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrNotSupported
}

func (t *countingTransport) CloseIdleConnections() {
	t.closes.Add(1)
}

func TestBorrowedSession_NeverClosesCallerPool(t *testing.T) {
	rt := &countingTransport{}
	s := Borrow(&http.Client{Transport: rt})
	assert.False(t, s.Owned())

	_, err := s.Client(false) // derive the insecure variant too
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(0), rt.closes.Load())
}

func TestOwnedSession_ClosesExactlyOnce(t *testing.T) {
	rt := &countingTransport{}
	s := newSession(&http.Client{Transport: rt}, true)
	assert.True(t, s.Owned())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, int32(1), rt.closes.Load())
}

func TestSession_CloseWithoutUse(t *testing.T) {
	s := New(DefaultOptions())
	assert.NoError(t, s.Close())
}

func TestSession_ClosedSessionRejectsClients(t *testing.T) {
	s := New(DefaultOptions())
	require.NoError(t, s.Close())

	_, err := s.Client(true)
	assert.ErrorIs(t, err, errors.ErrConnection)
}

func TestSession_ClientDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.example/graphql", http.StatusFound)
	}))
	defer srv.Close()

	s := New(DefaultOptions())
	defer s.Close()

	c, err := s.Client(true)
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://elsewhere.example/graphql", resp.Header.Get("Location"))
}

func TestSession_InsecureClientAcceptsSelfSigned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(DefaultOptions())
	defer s.Close()

	strict, err := s.Client(true)
	require.NoError(t, err)
	_, err = strict.Get(srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.KindTLS, errors.Translate(err, srv.URL).Kind)

	insecure, err := s.Client(false)
	require.NoError(t, err)
	resp, err := insecure.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSession_InsecureVariantIsReused(t *testing.T) {
	s := New(DefaultOptions())
	defer s.Close()

	a, err := s.Client(false)
	require.NoError(t, err)
	b, err := s.Client(false)
	require.NoError(t, err)

	assert.Same(t, a.Transport, b.Transport)
}
