package lastfm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/synctest"
	"time"
)

func TestWaitForAuthCallback_ReceivesToken(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokenChan := make(chan string, 1)

		// Send token before timeout
		tokenChan <- "test-token-123"

		token, err := WaitForAuthCallback(context.Background(), tokenChan, AuthTimeout)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "test-token-123" {
			t.Errorf("Token = %q, want %q", token, "test-token-123")
		}
	})
}

func TestWaitForAuthCallback_Timeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokenChan := make(chan string)

		type result struct {
			token string
			err   error
		}
		done := make(chan result)
		go func() {
			token, err := WaitForAuthCallback(context.Background(), tokenChan, AuthTimeout)
			done <- result{token, err}
		}()

		// Advance time past the 5 minute timeout
		time.Sleep(5*time.Minute + time.Second)
		synctest.Wait()

		res := <-done
		if !errors.Is(res.err, ErrAuthTimeout) {
			t.Fatalf("err = %v, want ErrAuthTimeout", res.err)
		}
		if res.token != "" {
			t.Errorf("expected empty token on timeout, got %q", res.token)
		}
	})
}

func TestWaitForAuthCallback_TokenBeforeTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokenChan := make(chan string)

		type result struct {
			token string
			err   error
		}
		done := make(chan result)
		go func() {
			token, err := WaitForAuthCallback(context.Background(), tokenChan, AuthTimeout)
			done <- result{token, err}
		}()

		// Wait 2 minutes then send token (before 5 min timeout)
		time.Sleep(2 * time.Minute)
		tokenChan <- "delayed-token"

		synctest.Wait()
		res := <-done
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.token != "delayed-token" {
			t.Errorf("Token = %q, want %q", res.token, "delayed-token")
		}
	})
}

func TestWaitForAuthCallback_Cancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(time.Second, cancel)

		_, err := WaitForAuthCallback(ctx, make(chan string), AuthTimeout)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestAuthServer_Callback(t *testing.T) {
	as, err := StartAuthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start auth server: %v", err)
	}
	defer as.Shutdown()

	if !strings.HasSuffix(as.CallbackURL(), "/callback") {
		t.Fatalf("CallbackURL = %q", as.CallbackURL())
	}

	resp, err := http.Get(as.CallbackURL() + "?token=abc")
	if err != nil {
		t.Fatalf("get callback: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "Successful") {
		t.Errorf("unexpected page: %s", body)
	}

	select {
	case token := <-as.TokenChan():
		if token != "abc" {
			t.Errorf("token = %q, want %q", token, "abc")
		}
	case <-time.After(time.Second):
		t.Fatal("token not delivered")
	}
}

func TestAuthServer_CallbackWithoutToken(t *testing.T) {
	as, err := StartAuthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start auth server: %v", err)
	}
	defer as.Shutdown()

	resp, err := http.Get(as.CallbackURL())
	if err != nil {
		t.Fatalf("get callback: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "Failed") {
		t.Errorf("unexpected page: %s", body)
	}
	select {
	case token := <-as.TokenChan():
		t.Errorf("unexpected token %q", token)
	default:
	}
}

func TestGetAuthURL(t *testing.T) {
	c := New("key", "secret")
	got := c.GetAuthURL("tok", "http://127.0.0.1:9847/callback")
	want := "https://www.last.fm/api/auth/?api_key=key&cb=http%3A%2F%2F127.0.0.1%3A9847%2Fcallback&token=tok"
	if got != want {
		t.Errorf("GetAuthURL = %q, want %q", got, want)
	}
}
