package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/imroc/req/v3"
)

var ErrAuthorization = errors.New("authorization failed")

// AuthorizationFlow obtains a refresh token when none was configured. It is only
// used once, at startup.
type AuthorizationFlow interface {
	Authorize(ctx context.Context) (string, error)
}

// ConsoleAuthorizationFlow runs the Dropbox no-redirect OAuth flow: the user opens
// a URL, allows the app and pastes the code shown back into the console.
type ConsoleAuthorizationFlow struct {
	AppKey    string
	AppSecret string
	In        io.Reader
	Out       io.Writer

	AuthorizeURL string
	TokenURL     string

	client *req.Client
}

func NewConsoleAuthorizationFlow(appKey, appSecret string, in io.Reader, out io.Writer) *ConsoleAuthorizationFlow {
	return &ConsoleAuthorizationFlow{
		AppKey:       appKey,
		AppSecret:    appSecret,
		In:           in,
		Out:          out,
		AuthorizeURL: dropboxAuthorizeURL,
		TokenURL:     dropboxAPIURL + "/oauth2/token",
		client:       newHTTPClient(),
	}
}

func (f *ConsoleAuthorizationFlow) URL() string {
	query := url.Values{}
	query.Set("client_id", f.AppKey)
	query.Set("response_type", "code")
	query.Set("token_access_type", "offline")
	return f.AuthorizeURL + "?" + query.Encode()
}

func (f *ConsoleAuthorizationFlow) Authorize(ctx context.Context) (string, error) {
	fmt.Fprintf(f.Out, "1. Go to: %s\n", f.URL())
	fmt.Fprintln(f.Out, `2. Click "Allow" (you might have to log in first).`)
	fmt.Fprintln(f.Out, "3. Copy the authorization code.")
	fmt.Fprint(f.Out, "Enter the authorization code here: ")

	line, err := bufio.NewReader(f.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read authorization code: %s", ErrAuthorization, err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("%w: no authorization code entered", ErrAuthorization)
	}

	var tok tokenResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"client_id":     f.AppKey,
			"client_secret": f.AppSecret,
		}).
		SetSuccessResult(&tok).
		Post(f.TokenURL)
	if err := dropboxError("exchange authorization code", resp, err); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAuthorization, err)
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token in response", ErrAuthorization)
	}

	return tok.RefreshToken, nil
}
