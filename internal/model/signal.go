package model

import "time"

// SignalType classifies what kind of market event a signal describes.
type SignalType string

const (
	SignalFunding     SignalType = "funding"
	SignalRegulatory  SignalType = "regulatory"
	SignalLayoffs     SignalType = "layoffs"
	SignalExpansion   SignalType = "expansion"
	SignalLeadership  SignalType = "leadership"
	SignalTechnology  SignalType = "technology"
	SignalMarketShift SignalType = "market_shift"
	SignalMAndA       SignalType = "m_and_a"
)

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	switch t {
	case SignalFunding, SignalRegulatory, SignalLayoffs, SignalExpansion,
		SignalLeadership, SignalTechnology, SignalMarketShift, SignalMAndA:
		return true
	default:
		return false
	}
}

// Sentiment is the tone of a signal for the affected industries.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is a known sentiment.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// Source is one publication backing a signal.
type Source struct {
	Name        string    `json:"name" yaml:"name"`
	URL         string    `json:"url" yaml:"url"`
	PublishedAt time.Time `json:"publishedAt" yaml:"published_at"`
}

// Signal is an AI-generated market event. Signals are immutable; every
// generation run replaces the whole batch.
type Signal struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Summary      string     `json:"summary" yaml:"summary"`
	SignalType   SignalType `json:"signalType" yaml:"signal_type"`
	Sentiment    Sentiment  `json:"sentiment" yaml:"sentiment"`
	Severity     int        `json:"severity" yaml:"severity"`
	IndustryTags []string   `json:"industryTags" yaml:"industry_tags"`
	Sources      []Source   `json:"sources" yaml:"sources"`
}

// Normalize bounds severity to 1–5 and defaults unknown enums.
func (s *Signal) Normalize() {
	switch {
	case s.Severity < 1:
		s.Severity = 1
	case s.Severity > 5:
		s.Severity = 5
	}
	if !s.Sentiment.Valid() {
		s.Sentiment = SentimentNeutral
	}
	if !s.SignalType.Valid() {
		s.SignalType = SignalMarketShift
	}
}
