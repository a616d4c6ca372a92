package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/set-night/adbazaar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLanding struct {
	page *LandingPage
	err  error
	urls []string
}

func (s *stubLanding) Fetch(_ context.Context, pageURL string) (*LandingPage, error) {
	s.urls = append(s.urls, pageURL)
	return s.page, s.err
}

func TestAdCopy_FallbackWithoutGenerator(t *testing.T) {
	svc := NewAdCopyService(nil, nil)

	out, err := svc.Generate(context.Background(), AdCopyInput{Product: "Trail Shoes", Audience: "runners"})
	require.NoError(t, err)
	assert.True(t, out.Fallback)
	assert.Len(t, out.Headlines, 3)
	assert.Contains(t, out.Body, "Trail Shoes")
	assert.Contains(t, out.Hashtags, "TrailShoes")
}

func TestAdCopy_Validation(t *testing.T) {
	svc := NewAdCopyService(nil, nil)
	tests := []AdCopyInput{
		{},
		{Product: strings.Repeat("p", 201)},
		{Product: "Shoes", Format: "hologram"},
		{Product: "Shoes", LandingURL: "shop.example.com"},
	}
	for _, in := range tests {
		_, err := svc.Generate(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestAdCopy_UsesGeneratorAndLandingPage(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{"headlines":["Run further"," ",""],"body":" Light and grippy. ","hashtags":["#trail","Trail","running shoes"]}` + "\n```"}
	landing := &stubLanding{page: &LandingPage{URL: "https://shoes.example.com", Title: "Trail Co", Headings: []string{"Built for mud"}}}
	svc := NewAdCopyService(gen, landing)

	out, err := svc.Generate(context.Background(), AdCopyInput{Product: "Trail Shoes", LandingURL: "https://shoes.example.com"})
	require.NoError(t, err)

	assert.False(t, out.Fallback)
	assert.Equal(t, []string{"Run further"}, out.Headlines)
	assert.Equal(t, "Light and grippy.", out.Body)
	assert.Equal(t, "Learn more", out.CallToAction)
	assert.Equal(t, []string{"trail", "runningshoes"}, out.Hashtags)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Page title: Trail Co")
	assert.Contains(t, gen.prompts[0], "Built for mud")
	assert.Equal(t, []string{"https://shoes.example.com"}, landing.urls)
}

func TestAdCopy_FallbackOnBadReply(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"error", &fakeGenerator{err: domain.ErrGenerationFailed}},
		{"not json", &fakeGenerator{reply: "Sure! Here are some headlines"}},
		{"incomplete", &fakeGenerator{reply: `{"headlines":[],"body":"x"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			landing := &stubLanding{err: errors.New("timeout")}
			out, err := NewAdCopyService(tt.gen, landing).Generate(context.Background(),
				AdCopyInput{Product: "Shoes", LandingURL: "https://shoes.example.com"})
			require.NoError(t, err)
			assert.True(t, out.Fallback)
		})
	}
}

func TestDeals_Fallback(t *testing.T) {
	svc := NewDealService(nil, nil)

	res, err := svc.Generate(context.Background(), DealsInput{Count: 7})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.Len(t, res.Deals, 7)

	titles := make(map[string]bool)
	for _, d := range res.Deals {
		assert.False(t, titles[d.Title], "duplicate title %q", d.Title)
		titles[d.Title] = true
		assert.True(t, d.DealPrice.LessThan(d.OriginalPrice))
		assert.GreaterOrEqual(t, d.DiscountPercent, 5)
		assert.LessOrEqual(t, d.DiscountPercent, 50)
	}
}

func TestDeals_DefaultCountAndValidation(t *testing.T) {
	svc := NewDealService(nil, nil)
	ctx := context.Background()

	res, err := svc.Generate(ctx, DealsInput{})
	require.NoError(t, err)
	assert.Len(t, res.Deals, 3)

	for _, in := range []DealsInput{{Count: 11}, {Count: -1}, {Budget: -5}} {
		_, err := svc.Generate(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestDeals_NormalizesGeneratedDeals(t *testing.T) {
	now := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)
	gen := &fakeGenerator{reply: `{"deals":[
		{"title":"Mega","slotType":"sidebar","format":"hologram","durationDays":0,"discountPercent":80},
		{"title":"","slotType":"top"},
		{"title":"Priced","slotType":"top","format":"video","durationDays":14,"originalPrice":500,"dealPrice":400}
	]}`}
	svc := NewDealService(gen, nil)
	svc.now = func() time.Time { return now }

	res, err := svc.Generate(context.Background(), DealsInput{Count: 5, Country: "us"})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.Len(t, res.Deals, 2)

	mega := res.Deals[0]
	assert.Equal(t, domain.SlotMid, mega.SlotType)
	assert.Equal(t, domain.FormatImage, mega.Format)
	assert.Equal(t, 7, mega.DurationDays)
	assert.Equal(t, 50, mega.DiscountPercent)
	assert.True(t, mega.OriginalPrice.IsPositive())
	assert.True(t, now.Add(7*24*time.Hour).Equal(mega.ValidUntil), "valid until %s", mega.ValidUntil)

	priced := res.Deals[1]
	assert.Equal(t, "500", priced.OriginalPrice.String())
	assert.Equal(t, 20, priced.DiscountPercent)
	assert.Equal(t, "400", priced.DealPrice.String())
}

func TestDeals_CachesGeneratedDeals(t *testing.T) {
	gen := &fakeGenerator{reply: `{"deals":[{"title":"Only one","slotType":"top","format":"image","durationDays":7,"discountPercent":10}]}`}
	svc := NewDealService(gen, NewMemoryCache(time.Minute))
	ctx := context.Background()

	first, err := svc.Generate(ctx, DealsInput{Category: "Shoes", Count: 1})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Generate(ctx, DealsInput{Category: "shoes", Count: 1})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Deals[0].Title, second.Deals[0].Title)
	assert.Equal(t, 1, gen.calls)
}

func TestDeals_FallbackIsNotCached(t *testing.T) {
	gen := &fakeGenerator{err: domain.ErrGenerationFailed}
	svc := NewDealService(gen, NewMemoryCache(time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := svc.Generate(ctx, DealsInput{Count: 2})
		require.NoError(t, err)
		assert.True(t, res.Fallback)
	}
	assert.Equal(t, 2, gen.calls)
}

func TestSurprise_Fallback(t *testing.T) {
	svc := NewSurpriseService(nil)
	ctx := context.Background()

	a, err := svc.Generate(ctx, SurpriseInput{Interests: []string{"Coffee", "travel"}})
	require.NoError(t, err)
	b, err := svc.Generate(ctx, SurpriseInput{Interests: []string{"coffee", "TRAVEL"}})
	require.NoError(t, err)

	assert.True(t, a.Fallback)
	assert.Equal(t, a.Title, b.Title)
	assert.NotEmpty(t, a.ImageURL)
}

func TestSurprise_Generated(t *testing.T) {
	gen := &fakeGenerator{
		reply:    `{"title":"Hello","message":"Your ads are doing great","rewardHint":"Invite a friend","imagePrompt":"confetti"}`,
		imageURL: "https://img.example.com/1.png",
	}
	out, err := NewSurpriseService(gen).Generate(context.Background(), SurpriseInput{})
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, "Hello", out.Title)
	assert.Equal(t, "https://img.example.com/1.png", out.ImageURL)

	gen.imageURL = ""
	out, err = NewSurpriseService(gen).Generate(context.Background(), SurpriseInput{})
	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.True(t, strings.HasPrefix(out.ImageURL, "/static/surprises/"))

	gen.reply = `{"title":"","message":""}`
	out, err = NewSurpriseService(gen).Generate(context.Background(), SurpriseInput{})
	require.NoError(t, err)
	assert.True(t, out.Fallback)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}\n", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"```json{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in))
	}
}

func TestDecodeJSONReply_Errors(t *testing.T) {
	var out map[string]any
	assert.ErrorIs(t, decodeJSONReply("   ", &out), domain.ErrGenerationFailed)
	assert.ErrorIs(t, decodeJSONReply("nope", &out), domain.ErrGenerationFailed)
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req ChatRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-test", req.Model)
			if assert.Len(t, req.Messages, 2) {
				assert.Equal(t, "system", req.Messages[0].Role)
				assert.Equal(t, "prompt", req.Messages[1].Content)
			}
			if assert.NotNil(t, req.ResponseFormat) {
				assert.Equal(t, "json_object", req.ResponseFormat.Type)
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"Hi\"}"}}]}`))
		case "/v1/images/generations":
			w.Write([]byte(`{"data":[{"url":"https://img.example.com/x.png"}]}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", "gpt-test", "img-test")
	ctx := context.Background()

	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, c.GenerateJSON(ctx, "system", "prompt", &out))
	assert.Equal(t, "Hi", out.Title)

	url, err := c.GenerateImage(ctx, "a cat")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/x.png", url)

	noImages := NewOpenAIClient(srv.URL+"/v1", "sk-test", "gpt-test", "")
	_, err = noImages.GenerateImage(ctx, "a cat")
	assert.ErrorIs(t, err, domain.ErrImageUnsupported)
}

func TestOpenAIClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := NewOpenAIClient(srv.URL, "bad", "m", "").GenerateJSON(context.Background(), "s", "p", &out)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "invalid api key")

	err = NewOpenAIClient(srv.URL, "limited", "m", "").GenerateJSON(context.Background(), "s", "p", &out)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestNewGenerator_NoCredentials(t *testing.T) {
	cfg := testConfig()
	gen, err := NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, gen)

	cfg.LLMProvider = "gemini"
	gen, err = NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, gen)

	cfg.LLMProvider = "openai"
	cfg.LLMAPIKey = "sk-test"
	gen, err = NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)
}

func TestParseLandingPage(t *testing.T) {
	html := `<html><head>
		<title>  Trail   Co </title>
		<meta property="og:description" content="Shoes for the mud">
	</head><body>
		<h1>Built for mud</h1><h2>  </h2><h2>Free returns</h2>
		<p>First paragraph.</p><p>Second   paragraph.</p>
	</body></html>`

	page, err := ParseLandingPage("https://trail.example.com", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "Trail Co", page.Title)
	assert.Equal(t, "Shoes for the mud", page.Description)
	assert.Equal(t, []string{"Built for mud", "Free returns"}, page.Headings)
	assert.Equal(t, "First paragraph. Second paragraph.", page.Text)

	block := page.promptBlock()
	assert.Contains(t, block, "Landing page: https://trail.example.com")
	assert.Contains(t, block, "Headings: Built for mud | Free returns")
}

func TestLandingFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<title>Fetched</title>`))
	}))
	defer srv.Close()

	f := newLandingFetcher(true)
	page, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "Fetched", page.Title)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestLandingFetcher_RefusesPrivateAddresses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`<title>Internal</title>`))
	}))
	defer srv.Close()

	_, err := NewLandingFetcher().Fetch(context.Background(), srv.URL+"/")
	assert.ErrorIs(t, err, errBlockedAddress)
	assert.Zero(t, hits)
}

func TestLandingFetcher_GuardsTransportAndRedirects(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<title>Metadata</title>`))
	}))
	defer internal.Close()

	// Redirect hops are dialed through the same transport.
	f := NewLandingFetcher()
	req, err := http.NewRequest(http.MethodGet, internal.URL, nil)
	require.NoError(t, err)
	_, err = f.httpClient.Transport.RoundTrip(req)
	assert.ErrorIs(t, err, errBlockedAddress)

	assert.NoError(t, checkLandingRedirect(req, nil))
	ftp, err := http.NewRequest(http.MethodGet, "ftp://files.example.com/x", nil)
	require.NoError(t, err)
	assert.Error(t, checkLandingRedirect(ftp, nil))
	assert.Error(t, checkLandingRedirect(req, make([]*http.Request, maxLandingRedirect)))
}

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"169.254.169.254", false},
		{"10.0.0.1", false},
		{"172.16.5.4", false},
		{"192.168.1.1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"224.0.0.1", false},
		{"::1", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.public, publicAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestValidateURL_RejectsInternalHosts(t *testing.T) {
	for _, raw := range []string{
		"http://localhost:8080/admin",
		"http://api.localhost/",
		"http://127.0.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"https://10.1.2.3/",
		"http://[::1]/",
	} {
		assert.Error(t, validateURL(raw, true), raw)
	}
	assert.NoError(t, validateURL("https://shop.example.com/spring", true))
	assert.NoError(t, validateURL("http://93.184.216.34/", true))
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "other", []byte("x")))
	assert.Len(t, c.entries, 1)
}
