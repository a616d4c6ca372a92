package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/set-night/adbazaar/internal/domain"
)

const maxInterests = 10

const surpriseSystemPrompt = `You write short, upbeat surprise messages for advertisers on an ad marketplace.
Reply with a JSON object with the keys "title", "message", "rewardHint" and "imagePrompt".
"imagePrompt" describes a cheerful illustration for the message.`

type SurpriseService struct {
	gen Generator
}

func NewSurpriseService(gen Generator) *SurpriseService {
	return &SurpriseService{gen: gen}
}

type SurpriseInput struct {
	Interests []string `json:"interests"`
}

var staticSurprises = []domain.Surprise{
	{
		Title:      "A little something for you",
		Message:    "Your next campaign deserves a spotlight. Check today's deals for a head start.",
		RewardHint: "Invite a friend and earn account credit when they launch their first campaign.",
		ImageURL:   "/static/surprises/gift.png",
	},
	{
		Title:      "Evening boost",
		Message:    "Ads that start in the evening reach the most people. Schedule one tonight.",
		RewardHint: "Weekend slots are in demand, book early.",
		ImageURL:   "/static/surprises/moon.png",
	},
	{
		Title:      "Go long, pay less",
		Message:    "Thirty day campaigns cost up to 20% less per day than one day bursts.",
		RewardHint: "Ninety day campaigns unlock the deepest discount tier.",
		ImageURL:   "/static/surprises/rocket.png",
	},
}

func (s *SurpriseService) Generate(ctx context.Context, in SurpriseInput) (*domain.Surprise, error) {
	interests := cleanList(in.Interests, maxInterests)
	if s.gen == nil {
		return fallbackSurprise(interests), nil
	}

	var reply struct {
		Title       string `json:"title"`
		Message     string `json:"message"`
		RewardHint  string `json:"rewardHint"`
		ImagePrompt string `json:"imagePrompt"`
	}
	if err := s.gen.GenerateJSON(ctx, surpriseSystemPrompt, surprisePrompt(interests), &reply); err != nil {
		slog.Warn("surprise generation failed, using fallback", "error", err)
		return fallbackSurprise(interests), nil
	}
	if strings.TrimSpace(reply.Title) == "" || strings.TrimSpace(reply.Message) == "" {
		slog.Warn("surprise reply incomplete, using fallback")
		return fallbackSurprise(interests), nil
	}

	out := &domain.Surprise{
		Title:      strings.TrimSpace(reply.Title),
		Message:    strings.TrimSpace(reply.Message),
		RewardHint: strings.TrimSpace(reply.RewardHint),
		ImageURL:   fallbackSurprise(interests).ImageURL,
	}

	imagePrompt := strings.TrimSpace(reply.ImagePrompt)
	if imagePrompt == "" {
		imagePrompt = fmt.Sprintf("A cheerful flat illustration for: %s", out.Title)
	}
	if url, err := s.gen.GenerateImage(ctx, imagePrompt); err != nil {
		slog.Info("surprise image unavailable, using static image", "error", err)
	} else {
		out.ImageURL = url
	}
	return out, nil
}

func surprisePrompt(interests []string) string {
	if len(interests) == 0 {
		return "Write a surprise for an advertiser with no stated interests."
	}
	return fmt.Sprintf("Write a surprise for an advertiser interested in: %s.", strings.Join(interests, ", "))
}

// fallbackSurprise picks a static surprise; the same interests always get the same one.
func fallbackSurprise(interests []string) *domain.Surprise {
	h := fnv.New32a()
	for _, i := range interests {
		h.Write([]byte(strings.ToLower(i)))
	}
	out := staticSurprises[h.Sum32()%uint32(len(staticSurprises))]
	out.Fallback = true
	return &out
}
