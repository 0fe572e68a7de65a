// Package api exposes the engine's operations over HTTP. Handlers stay
// thin: parse, delegate to a service, render. The caller's identity comes
// from the X-User-Id header; authentication itself lives upstream.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/talenthq/arena/internal/assessment"
	"github.com/talenthq/arena/internal/contest"
	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
	"github.com/talenthq/arena/internal/leaderboard"
)

const userHeader = "X-User-Id"

type Config struct {
	Router      gin.IRouter
	Assessment  *assessment.Service
	Contest     *contest.Service
	Leaderboard *leaderboard.Service
}

type API struct {
	as *assessment.Service
	cs *contest.Service
	ls *leaderboard.Service
}

func New(c Config) *API {
	a := &API{
		as: c.Assessment,
		cs: c.Contest,
		ls: c.Leaderboard,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/assessments/:id/attempts", a.startAttempt)
	v1.GET("/attempts/:id", a.getAttempt)
	v1.PUT("/attempts/:id/answers/:questionId", a.saveAnswer)
	v1.POST("/attempts/:id/submit", a.submitAttempt)
	v1.POST("/attempts/:id/tab-switch", a.reportTabSwitch)

	v1.POST("/events/:id/participants", a.registerParticipant)
	v1.POST("/events/:id/participants/:pid/rounds/:round/evaluate", a.evaluateRound)
	v1.POST("/events/:id/quiz/submissions", a.submitQuiz)
	v1.POST("/events/:id/finalize", a.finalizeWinners)
	v1.GET("/events/:id/leaderboard", a.getLeaderboard)

	return a
}

func (a *API) startAttempt(c *gin.Context) {
	at, err := a.as.StartAttempt(c.Request.Context(), assessment.StartAttemptRequest{
		AssessmentID: c.Param("id"),
		CandidateID:  c.GetHeader(userHeader),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, at)
}

func (a *API) getAttempt(c *gin.Context) {
	at, err := a.as.GetAttempt(c.Request.Context(), assessment.GetAttemptRequest{
		AttemptID:   c.Param("id"),
		CandidateID: c.GetHeader(userHeader),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, at)
}

type saveAnswerBody struct {
	Answer    []string `json:"answer"`
	TimeTaken int      `json:"timeTaken"`
}

func (a *API) saveAnswer(c *gin.Context) {
	var body saveAnswerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	at, err := a.as.SaveAnswer(c.Request.Context(), assessment.SaveAnswerRequest{
		AttemptID:   c.Param("id"),
		CandidateID: c.GetHeader(userHeader),
		QuestionID:  c.Param("questionId"),
		Answer:      body.Answer,
		TimeTaken:   body.TimeTaken,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, at)
}

func (a *API) submitAttempt(c *gin.Context) {
	at, err := a.as.SubmitAttempt(c.Request.Context(), assessment.SubmitAttemptRequest{
		AttemptID:   c.Param("id"),
		CandidateID: c.GetHeader(userHeader),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, at)
}

type tabSwitchResponse struct {
	Attempt *domain.Attempt `json:"attempt"`
	Warning bool            `json:"warning"`
}

func (a *API) reportTabSwitch(c *gin.Context) {
	resp, err := a.as.ReportTabSwitch(c.Request.Context(), assessment.ReportTabSwitchRequest{
		AttemptID:   c.Param("id"),
		CandidateID: c.GetHeader(userHeader),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, tabSwitchResponse{Attempt: resp.Attempt, Warning: resp.Warning})
}

type registerBody struct {
	DisplayName string `json:"displayName"`
}

func (a *API) registerParticipant(c *gin.Context) {
	var body registerBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
			return
		}
	}

	p, err := a.cs.RegisterParticipant(c.Request.Context(), contest.RegisterParticipantRequest{
		EventID:     c.Param("id"),
		UserID:      c.GetHeader(userHeader),
		DisplayName: body.DisplayName,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type evaluateBody struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
	Status   string   `json:"status" binding:"required"`
}

func (a *API) evaluateRound(c *gin.Context) {
	var body evaluateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	round, err := intParam(c, "round")
	if err != nil {
		renderError(c, err)
		return
	}

	req := contest.EvaluateRoundRequest{
		EventID:       c.Param("id"),
		ParticipantID: c.Param("pid"),
		RoundNumber:   round,
		Feedback:      body.Feedback,
		Status:        domain.RoundState(body.Status),
		EvaluatorID:   c.GetHeader(userHeader),
	}
	if body.Score != nil {
		v := decimal.NewFromFloat(*body.Score)
		req.Score = &v
	}

	p, err := a.cs.EvaluateRound(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type submitQuizBody struct {
	Answers map[string]int `json:"answers" binding:"required"`
}

func (a *API) submitQuiz(c *gin.Context) {
	var body submitQuizBody
	if err := c.ShouldBindJSON(&body); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	p, err := a.cs.SubmitQuiz(c.Request.Context(), contest.SubmitQuizRequest{
		EventID: c.Param("id"),
		UserID:  c.GetHeader(userHeader),
		Answers: body.Answers,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type finalizeBody struct {
	WinnerCount int `json:"winnerCount"`
}

func (a *API) finalizeWinners(c *gin.Context) {
	// The body is optional; finalizing with defaults needs no payload.
	var body finalizeBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
			return
		}
	}

	e, err := a.cs.FinalizeWinners(c.Request.Context(), contest.FinalizeWinnersRequest{
		EventID:     c.Param("id"),
		WinnerCount: body.WinnerCount,
		ActorID:     c.GetHeader(userHeader),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (a *API) getLeaderboard(c *gin.Context) {
	page, _ := intQuery(c, "page")
	perPage, _ := intQuery(c, "perPage")

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		EventID: c.Param("id"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.JSON(e.HTTPStatusCode(), gin.H{
		"code":    e.Code,
		"message": e.Message,
	})
}
