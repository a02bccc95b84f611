package quiz_test

import (
	"testing"

	"github.com/p-n-ai/pai-content/internal/quiz"
)

func sampleDocument() quiz.Document {
	return quiz.Document{Questions: []quiz.Question{
		{Question: "2+2?", Options: []string{"3", "4", "5"}, CorrectAnswer: 1},
	}}
}

func TestGrade_Scenario(t *testing.T) {
	doc := sampleDocument()

	got := quiz.Grade(doc, quiz.Answers{0: 1})
	if got.Correct != 1 || got.Total != 1 || got.Percentage != 100 {
		t.Errorf("Grade({0:1}) = %+v, want correct=1 total=1 percentage=100", got)
	}
	if got.Band != quiz.BandGreat {
		t.Errorf("Band = %q, want %q", got.Band, quiz.BandGreat)
	}

	got = quiz.Grade(doc, quiz.Answers{})
	if got.Correct != 0 || got.Percentage != 0 {
		t.Errorf("Grade({}) = %+v, want correct=0 percentage=0", got)
	}
	if got.Questions[0].Selected != nil {
		t.Error("unanswered question should have no selection")
	}
}

func TestGrade_AllCorrect(t *testing.T) {
	doc := quiz.Document{}
	answers := quiz.Answers{}
	for i := 0; i < 7; i++ {
		doc.Questions = append(doc.Questions, quiz.Question{
			Question:      "q",
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: i % 3,
		})
		answers[i] = i % 3
	}

	got := quiz.Grade(doc, answers)
	if got.Correct != 7 || got.Total != 7 || got.Percentage != 100 {
		t.Errorf("Grade() = %+v, want 7/7 100%%", got)
	}
}

func TestGrade_IgnoresAnswersOutsideDocument(t *testing.T) {
	got := quiz.Grade(sampleDocument(), quiz.Answers{0: 0, 5: 1})
	if got.Correct != 0 || got.Total != 1 {
		t.Errorf("Grade() = %+v, want 0/1", got)
	}
	if !(got.Questions[0].Selected != nil && *got.Questions[0].Selected == 0) {
		t.Error("selection for question 0 should be recorded")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 8, 13}, // 12.5 rounds up
		{1, 3, 33},
		{2, 3, 67},
		{3, 8, 38}, // 37.5 rounds up
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := quiz.Percentage(tt.correct, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		pct  int
		want quiz.Band
	}{
		{100, quiz.BandGreat},
		{70, quiz.BandGreat},
		{69, quiz.BandGood},
		{50, quiz.BandGood},
		{49, quiz.BandKeepPracticing},
		{0, quiz.BandKeepPracticing},
	}
	for _, tt := range tests {
		if got := quiz.BandFor(tt.pct); got != tt.want {
			t.Errorf("BandFor(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
