package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

const (
	// AuthCallbackPort is the port used for the local OAuth callback server.
	AuthCallbackPort = 9847
	// AuthTimeout is how long the user has to authorize the token.
	AuthTimeout = 5 * time.Minute
)

// ErrAuthTimeout is returned when no authorized token arrived in time.
var ErrAuthTimeout = errors.New("authorization timed out")

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>scrobbled - Last.fm Authorization</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`

// AuthServer handles the OAuth callback flow.
type AuthServer struct {
	server    *http.Server
	listener  net.Listener
	tokenChan chan string
	done      chan struct{}
}

// StartAuthServer starts a local HTTP server on addr to receive the OAuth
// callback. An empty addr listens on AuthCallbackPort.
func StartAuthServer(addr string) (*AuthServer, error) {
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", AuthCallbackPort)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	tokenChan := make(chan string, 1)
	mux := http.NewServeMux()
	as := &AuthServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener:  listener,
		tokenChan: tokenChan,
		done:      make(chan struct{}),
	}

	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")

		w.Header().Set("Content-Type", "text/html")
		if token != "" {
			fmt.Fprintf(w, callbackPage, "Authorization Successful!",
				"You can close this window and return to your terminal.")
		} else {
			fmt.Fprintf(w, callbackPage, "Authorization Failed", "No token received. Please try again.")
			return
		}

		select {
		case tokenChan <- token:
		default:
		}
	})

	go func() {
		_ = as.server.Serve(listener)
		close(as.done)
	}()

	return as, nil
}

// CallbackURL returns the URL Last.fm should redirect to.
func (as *AuthServer) CallbackURL() string {
	return "http://" + as.listener.Addr().String() + "/callback"
}

// TokenChan returns the channel that receives the auth token.
func (as *AuthServer) TokenChan() <-chan string {
	return as.tokenChan
}

// Shutdown stops the auth server.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// WaitForAuthCallback waits for an authorized token.
func WaitForAuthCallback(ctx context.Context, tokenChan <-chan string, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case token := <-tokenChan:
		return token, nil
	case <-timer.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LinkAccount runs the browser authorization flow and stores the resulting
// session. open is called with the URL the user must visit.
func LinkAccount(ctx context.Context, client *Client, store SessionStore, open func(url string) error) (string, error) {
	as, err := StartAuthServer("")
	if err != nil {
		return "", err
	}
	defer as.Shutdown()

	token, err := client.GetToken()
	if err != nil {
		return "", err
	}
	if err := open(client.GetAuthURL(token, as.CallbackURL())); err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}

	authorized, err := WaitForAuthCallback(ctx, as.TokenChan(), AuthTimeout)
	if err != nil {
		return "", err
	}

	username, sessionKey, err := client.GetSession(authorized)
	if err != nil {
		return "", err
	}
	if err := store.SaveSession(ServiceID, username, sessionKey); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return username, nil
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
