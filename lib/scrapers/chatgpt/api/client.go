package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"chatexport/lib/restyutil"
	"chatexport/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput makes every HTTPRunner built afterwards dump its
// raw exchanges to the output.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

// HTTPRunner replays the endpoints over a plain HTTP client seeded with the
// browser session's cookies. Used when the in-page path lists nothing, which
// happens on rollouts that block fetch() from the app origin.
type HTTPRunner struct {
	client *resty.Client
}

func NewHTTPRunner(baseUrl string, cookies []*http.Cookie) (*HTTPRunner, error) {
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(parsed, cookies)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/chatgpt/http")
	restyutil.InstrumentClient(client, instrumentOutput)

	return &HTTPRunner{client: client}, nil
}

func (r *HTTPRunner) FetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	res, err := r.client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %s", res.Status())
	}
	body := res.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not json")
	}
	return json.RawMessage(body), nil
}
