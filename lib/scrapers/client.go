package scrapers

import (
	"net/http/cookiejar"
	"time"

	"a11yhood-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "a11yhood/1.0 (https://a11yhood.org; contact@a11yhood.org)"

type ClientOptions struct {
	BaseUrl   string
	UserAgent string
	Timeout   time.Duration
	// headers merged into every request
	Headers map[string]string
	// route requests through the cloudflare bypass transport, for sources
	// sitting behind bot protection
	BypassBotProtection bool
	// tracer name for span instrumentation, defaults to "scrapers/http"
	TracerName string
}

// NewHTTPClient builds the resty client every adapter fetches with.
func NewHTTPClient(opts ClientOptions) *resty.Client {
	client := resty.New()
	if opts.BaseUrl != "" {
		client.SetBaseURL(opts.BaseUrl)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	client.SetHeader("User-Agent", ua)
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	jar, err := cookiejar.New(nil)
	if err == nil {
		client.SetCookieJar(jar)
	}

	if opts.BypassBotProtection {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	tracerName := opts.TracerName
	if tracerName == "" {
		tracerName = "scrapers/http"
	}
	telemetry.InstrumentResty(client, tracerName)

	return client
}
