package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/set-night/adbazaar/internal/pricing"
)

const adCopySystemPrompt = `You are an advertising copywriter for an online ad marketplace.
Reply with a single JSON object with the keys "headlines" (array of strings),
"body" (string), "callToAction" (string) and "hashtags" (array of strings without #).`

type landingSource interface {
	Fetch(ctx context.Context, pageURL string) (*LandingPage, error)
}

type AdCopyService struct {
	gen     Generator
	landing landingSource
}

func NewAdCopyService(gen Generator, landing landingSource) *AdCopyService {
	return &AdCopyService{gen: gen, landing: landing}
}

type AdCopyInput struct {
	Product    string          `json:"product"`
	Audience   string          `json:"audience"`
	Tone       string          `json:"tone"`
	Format     domain.AdFormat `json:"format"`
	LandingURL string          `json:"landingUrl"`
}

func (in *AdCopyInput) validate() error {
	in.Product = strings.TrimSpace(in.Product)
	if in.Product == "" {
		return fmt.Errorf("%w: product is required", domain.ErrInvalidInput)
	}
	if len([]rune(in.Product)) > maxTitleLen {
		return fmt.Errorf("%w: product is too long", domain.ErrInvalidInput)
	}
	in.Audience = strings.TrimSpace(in.Audience)
	in.Tone = strings.TrimSpace(in.Tone)
	if in.Tone == "" {
		in.Tone = "friendly"
	}
	if in.Format == "" {
		in.Format = domain.FormatImage
	}
	if !pricing.ValidFormat(in.Format) {
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, in.Format)
	}
	if in.LandingURL != "" {
		if err := validateURL(in.LandingURL, true); err != nil {
			return fmt.Errorf("%w: landing url: %v", domain.ErrInvalidInput, err)
		}
	}
	return nil
}

// Generate writes ad copy for the product. Generation failures never surface
// to the caller: the template copy is returned with Fallback set.
func (s *AdCopyService) Generate(ctx context.Context, in AdCopyInput) (*domain.AdCopy, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.gen == nil {
		return fallbackAdCopy(in), nil
	}

	var page *LandingPage
	if in.LandingURL != "" && s.landing != nil {
		p, err := s.landing.Fetch(ctx, in.LandingURL)
		if err != nil {
			slog.Warn("landing page fetch failed", "url", in.LandingURL, "error", err)
		} else {
			page = p
		}
	}

	var out domain.AdCopy
	if err := s.gen.GenerateJSON(ctx, adCopySystemPrompt, adCopyPrompt(in, page), &out); err != nil {
		slog.Warn("ad copy generation failed, using fallback", "error", err)
		return fallbackAdCopy(in), nil
	}

	out.Headlines = cleanList(out.Headlines, config.MaxHeadlines)
	out.Hashtags = cleanHashtags(out.Hashtags)
	out.Body = strings.TrimSpace(out.Body)
	out.CallToAction = strings.TrimSpace(out.CallToAction)
	if len(out.Headlines) == 0 || out.Body == "" {
		slog.Warn("ad copy reply incomplete, using fallback")
		return fallbackAdCopy(in), nil
	}
	if out.CallToAction == "" {
		out.CallToAction = "Learn more"
	}
	out.Fallback = false
	return &out, nil
}

func adCopyPrompt(in AdCopyInput, page *LandingPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write ad copy for a %s ad.\n", in.Format)
	fmt.Fprintf(&b, "Product: %s\n", in.Product)
	if in.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", in.Audience)
	}
	fmt.Fprintf(&b, "Tone: %s\n", in.Tone)
	if page != nil {
		b.WriteString(page.promptBlock())
	}
	fmt.Fprintf(&b, "Give up to %d headlines under 60 characters, a body under 200 characters, "+
		"a short call to action and 3 to 5 hashtags.", config.MaxHeadlines)
	return b.String()
}

func fallbackAdCopy(in AdCopyInput) *domain.AdCopy {
	audience := in.Audience
	if audience == "" {
		audience = "you"
	}
	return &domain.AdCopy{
		Headlines: []string{
			fmt.Sprintf("Discover %s", in.Product),
			fmt.Sprintf("%s, made for %s", in.Product, audience),
			fmt.Sprintf("Why everyone is talking about %s", in.Product),
		},
		Body:         fmt.Sprintf("%s helps %s get more done. Try it today and see the difference.", in.Product, audience),
		CallToAction: "Learn more",
		Hashtags:     cleanHashtags([]string{in.Product, "deal", "new"}),
		Fallback:     true,
	}
}

func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func cleanHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(t), "#"), " ", "")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
