package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/p-n-ai/pai-content/internal/platform/apierr"
	"github.com/p-n-ai/pai-content/internal/quiz"
	"github.com/p-n-ai/pai-content/internal/schema"
)

func (h *handler) listQuizzes(c *gin.Context) {
	quizzes, err := h.catalog.ListQuizzes(c.Request.Context(), c.Query("sectionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *handler) getQuiz(c *gin.Context) {
	q, err := h.catalog.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) createQuiz(c *gin.Context) {
	var in schema.QuizInput
	if !bindJSON(c, &in) {
		return
	}
	q, err := h.catalog.CreateQuiz(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// importQuiz accepts multipart form fields sectionId, title and description
// plus a quiz file.
func (h *handler) importQuiz(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "file", "upload exceeds "+strconv.FormatInt(h.maxImportBytes, 10)+" bytes")
			return
		}
		badRequest(c, "file", "is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	meta := schema.QuizInput{
		SectionID:   c.PostForm("sectionId"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	q, err := h.catalog.ImportQuiz(c.Request.Context(), meta, fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

type gradeRequest struct {
	Answers map[string]int `json:"answers"`
}

// gradeQuiz scores an attempt. Answer keys are question indexes as strings,
// e.g. {"answers": {"0": 1}}.
func (h *handler) gradeQuiz(c *gin.Context) {
	var req gradeRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		badRequest(c, "answers", "malformed JSON body: "+err.Error())
		return
	}

	answers := make(quiz.Answers, len(req.Answers))
	var problems []apierr.Problem
	for k, v := range req.Answers {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			problems = append(problems, apierr.Field("answers", "question index "+strconv.Quote(k)+" is not a non-negative integer"))
			continue
		}
		answers[idx] = v
	}
	if err := apierr.Validation(problems...); err != nil {
		respondError(c, err)
		return
	}

	res, err := h.catalog.GradeQuiz(c.Request.Context(), c.Param("id"), answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) deleteQuiz(c *gin.Context) {
	if err := h.catalog.DeleteQuiz(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
