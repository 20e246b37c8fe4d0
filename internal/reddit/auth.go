package reddit

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// userAgentTransport sets User-Agent on every request, token requests included.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// passwordTokenSource performs the password grant each time a token is needed.
// Reddit issues no refresh token for script apps, so expiry means a new grant.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

// newHTTPClient returns an *http.Client that authenticates as the script
// app's user when a username is set and as the application otherwise.
func newHTTPClient(ctx context.Context, opts Options) *http.Client {
	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}
	transport := &userAgentTransport{base: base, userAgent: opts.UserAgent}

	// Token fetches outlive the constructor's context.
	ctx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Transport: transport})

	var ts oauth2.TokenSource
	if opts.Username != "" {
		conf := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		ts = oauth2.ReuseTokenSource(nil, &passwordTokenSource{
			ctx:      ctx,
			conf:     conf,
			username: opts.Username,
			password: opts.Password,
		})
	} else {
		conf := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ts = conf.TokenSource(ctx)
	}

	client := oauth2.NewClient(ctx, ts)
	if opts.HTTPClient != nil {
		client.Timeout = opts.HTTPClient.Timeout
	}
	return client
}
