package oauthbroker

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var ErrFlowTimeout = errors.New("oauth flow timed out waiting for callback")

// pkcePair is a PKCE code verifier/challenge pair for public clients.
type pkcePair struct {
	verifier  string
	challenge string
}

func newPKCEPair() (pkcePair, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return pkcePair{}, err
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return pkcePair{verifier: verifier, challenge: challenge}, nil
}

// pendingFlow tracks one in-flight authorization request awaiting its
// loopback callback.
type pendingFlow struct {
	state    string
	provider Provider
	pkce     pkcePair
	resultCh chan callbackResult
}

type callbackResult struct {
	code string
	err  error
}

// CallbackListener runs a single loopback HTTP server on a fixed local port
// and routes incoming `?code&state` callbacks to whichever pending flow
// matches the state nonce.
type CallbackListener struct {
	addr   string
	server *http.Server

	mu      chan struct{} // binary semaphore guarding pending
	pending map[string]*pendingFlow
}

// NewCallbackListener starts listening on addr (e.g. "127.0.0.1:43117").
func NewCallbackListener(addr string) (*CallbackListener, error) {
	l := &CallbackListener{
		addr:    addr,
		mu:      make(chan struct{}, 1),
		pending: make(map[string]*pendingFlow),
	}
	l.mu <- struct{}{}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", l.handleCallback)
	l.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on oauth callback port: %w", err)
	}
	go l.server.Serve(ln)
	return l, nil
}

func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	errParam := r.URL.Query().Get("error")

	<-l.mu
	flow, ok := l.pending[state]
	if ok {
		delete(l.pending, state)
	}
	l.mu <- struct{}{}

	if !ok {
		http.Error(w, "unknown or expired state", http.StatusBadRequest)
		return
	}

	if errParam != "" {
		flow.resultCh <- callbackResult{err: fmt.Errorf("provider returned error: %s", errParam)}
	} else {
		flow.resultCh <- callbackResult{code: code}
	}

	fmt.Fprint(w, "Harbor: authorization complete, you may close this tab.")
}

func (l *CallbackListener) register(flow *pendingFlow) {
	<-l.mu
	l.pending[flow.state] = flow
	l.mu <- struct{}{}
}

func (l *CallbackListener) unregister(state string) {
	<-l.mu
	delete(l.pending, state)
	l.mu <- struct{}{}
}

// Close shuts down the loopback server.
func (l *CallbackListener) Close(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// RunFlow builds an authorization URL, waits for the loopback callback, and
// exchanges the resulting code for a token. authURLReady is invoked with the
// URL the caller should present to the user (via the permission-prompt UI,
// out of scope here).
func (l *CallbackListener) RunFlow(ctx context.Context, provider Provider, authURLReady func(url string)) (*callbackResult, pkcePair, string, error) {
	state := uuid.New().String()
	pkce, err := newPKCEPair()
	if err != nil {
		return nil, pkcePair{}, "", fmt.Errorf("generate pkce: %w", err)
	}

	flow := &pendingFlow{state: state, provider: provider, pkce: pkce, resultCh: make(chan callbackResult, 1)}
	l.register(flow)
	defer l.unregister(state)

	authURLReady(provider.AuthURL(state, pkce.challenge))

	select {
	case res := <-flow.resultCh:
		return &res, pkce, state, nil
	case <-ctx.Done():
		return nil, pkce, state, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, pkce, state, ErrFlowTimeout
	}
}
