package quiz

// Answers maps a question index to the option index the learner selected.
// Questions missing from the map are unanswered.
type Answers map[int]int

// Band is the feedback tier shown with a score.
type Band string

const (
	BandGreat          Band = "great"
	BandGood           Band = "good"
	BandKeepPracticing Band = "keep_practicing"
)

// QuestionResult is the per-question outcome of grading.
type QuestionResult struct {
	Index         int  `json:"index"`
	Selected      *int `json:"selected,omitempty"`
	CorrectAnswer int  `json:"correctAnswer"`
	Correct       bool `json:"correct"`
}

// Result is the outcome of grading one attempt.
type Result struct {
	Correct    int              `json:"correct"`
	Total      int              `json:"total"`
	Percentage int              `json:"percentage"`
	Band       Band             `json:"band"`
	Questions  []QuestionResult `json:"questions"`
}

// Grade scores answers against doc. A question is correct only when its
// selected option equals CorrectAnswer; unanswered questions are never
// correct. Grade does not require every question to be answered and keeps
// no record of the attempt.
func Grade(doc Document, answers Answers) Result {
	res := Result{
		Total:     len(doc.Questions),
		Questions: make([]QuestionResult, len(doc.Questions)),
	}
	for i, q := range doc.Questions {
		qr := QuestionResult{Index: i, CorrectAnswer: q.CorrectAnswer}
		if sel, ok := answers[i]; ok {
			selected := sel
			qr.Selected = &selected
			qr.Correct = sel == q.CorrectAnswer
		}
		if qr.Correct {
			res.Correct++
		}
		res.Questions[i] = qr
	}
	res.Percentage = Percentage(res.Correct, res.Total)
	res.Band = BandFor(res.Percentage)
	return res
}

// Percentage returns round(100*correct/total) with halves rounded up, using
// integer arithmetic so the result is identical on every platform. A total
// of zero yields zero.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// BandFor returns the feedback band for a percentage.
func BandFor(percentage int) Band {
	switch {
	case percentage >= 70:
		return BandGreat
	case percentage >= 50:
		return BandGood
	default:
		return BandKeepPracticing
	}
}
